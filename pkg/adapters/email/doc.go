// Package email delivers email notifications through a provider-agnostic
// Sender interface, with built-in Postmark and save-to-disk development
// implementations.
//
// The package is built around two layers. Sender is the raw transport: it
// takes fully rendered SendEmailParams and moves them to a provider. Adapter
// sits on top and implements notifications.Adapter: it resolves the
// recipient's address, renders the notification's templates with the resolved
// context, loads stored attachments, and hands the result to the Sender.
//
// # Usage
//
//	sender, err := email.NewPostmarkSender(email.Config{
//	    PostmarkServerToken:  "server-token",
//	    PostmarkAccountToken: "account-token",
//	    SenderEmail:          "noreply@example.com",
//	    SupportEmail:         "support@example.com",
//	})
//	if err != nil {
//	    // handle configuration error
//	}
//
//	adapter, err := email.NewAdapter(sender,
//	    email.WithAddressResolver(lookupUserEmail),
//	    email.WithAttachmentStore(store),
//	)
//
// Register the adapter on a dispatch pipeline with
// notifications.WithAdapters(adapter).
//
// For local development, NewDevSender saves each email as an HTML file plus a
// JSON metadata file instead of sending it:
//
//	adapter, err := email.NewAdapter(email.NewDevSender("./tmp/emails"))
package email

// Package config loads typed configuration structs from environment variables.
//
// Configuration is described with `env` struct tags (github.com/caarlos0/env)
// and optionally seeded from .env files (github.com/joho/godotenv). Each
// configuration type is parsed once per process and cached, so packages can
// call Load for their own Config without coordinating initialization order.
//
// # Usage
//
//	type S3Config struct {
//		Bucket string `env:"S3_BUCKET,required"`
//		Region string `env:"S3_REGION" envDefault:"us-east-1"`
//	}
//
//	var cfg S3Config
//	config.MustLoad(&cfg)
//
// Tests that mutate the environment should call ResetCache between cases.
package config

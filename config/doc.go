// Package config loads client configuration with Viper.
//
// A YAML file (explicit or found in the standard locations) provides the
// base values, a .env file is loaded with godotenv, and ASYNCHTTP_* variables
// override both. Nested keys map from underscores, so ASYNCHTTP_POOL_SIZE
// sets pool.size.
//
// # Usage
//
//	cfg, err := config.Load[client.Config]("orders-client")
package config

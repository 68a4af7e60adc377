// Package validation checks configuration structs and outbound requests.
//
// Struct tag validation (go-playground/validator) is used for config
// sections; the programmatic Validator is used where rules depend on values
// that tags cannot express. Both report a single INVALID_INPUT AppError
// whose "fields" detail lists every failure.
//
// # Struct Tag Validation
//
//	type PoolConfig struct {
//	    Size int `mapstructure:"size" validate:"gte=1"`
//	}
//	err := validation.ValidateStruct(cfg)
//
// # Programmatic Validation
//
//	err := validation.New().
//	    Required("method", req.Method).
//	    HTTPURL("url", req.URL).
//	    Validate()
package validation

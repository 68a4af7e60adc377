// Package logger provides structured logging for asynchttp using zerolog.
//
// It supports JSON and console output, level configuration, component-scoped
// loggers and a small named registry. Loggers derived with WithContext pick
// up the active trace/span IDs and the operation ID stored by
// ContextWithOperationID.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("operation")
//	log.Info("response complete", logger.Fields(logger.FieldStatus, 200))
package logger

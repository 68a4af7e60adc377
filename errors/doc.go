// Package errors defines the failure taxonomy of the response engine.
package errors

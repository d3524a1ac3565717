// Package errutil holds helpers for errors built with samber/oops.
package errutil

import (
	"fmt"

	"github.com/samber/oops"

	"github.com/ceskypane/abwars/logging"
)

// Code returns the oops error code carried by err, or "" when err carries none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	code := oopsErr.Code()
	if code == nil {
		return ""
	}

	return fmt.Sprint(code)
}

// Fields flattens err into log fields: the error text, its code and context.
func Fields(err error) []logging.Field {
	if err == nil {
		return nil
	}

	fields := []logging.Field{logging.F("error", err.Error())}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return fields
	}

	if code := Code(err); code != "" {
		fields = append(fields, logging.F("code", code))
	}

	for key, value := range oopsErr.Context() {
		fields = append(fields, logging.F(key, value))
	}

	return fields
}

// LogError writes err at error level with its oops metadata.
func LogError(log logging.Logger, msg string, err error) {
	logging.With(log).Error(msg, Fields(err)...)
}

// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder and an optional rotating file sink,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and parsing utilities,
//   - convenience functions (InfoKV, ErrorKV, etc.).
//
// Services accept a context and extract the logger from it, so every unit of
// work (one alert fan-out, one claim) logs with its own name and fields.
package logger

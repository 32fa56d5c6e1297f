package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/scholar/internal/telemetry"
	"github.com/mohammad-safakhou/scholar/models"
	"go.uber.org/zap"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "research_session"

	sessionKey = "session_id"
)

// sessionMiddleware resolves the caller's session from the X-Session-ID
// header, then the session cookie, creating a new session when neither is
// present. A malformed header is rejected; a malformed cookie is replaced
// with a new session. The resolved id is echoed back in both places.
func sessionMiddleware(research Research, maxAge time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(SessionHeader)
			if id != "" && !models.ValidSessionID(id) {
				return models.NewValidationError("session_id", "must be 1-128 letters, digits, '-' or '_'")
			}
			if id == "" {
				if cookie, err := c.Cookie(SessionCookie); err == nil && models.ValidSessionID(cookie.Value) {
					id = cookie.Value
				}
			}
			id, err := research.EnsureSession(c.Request().Context(), id)
			if err != nil {
				return err
			}
			c.Set(sessionKey, id)
			c.Response().Header().Set(SessionHeader, id)
			c.SetCookie(&http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			return next(c)
		}
	}
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(sessionKey).(string)
	return id
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Message != nil {
			return he.Code, fmt.Sprint(he.Message)
		}
		return he.Code, http.StatusText(he.Code)
	}
	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case models.IsNotFound(err):
		return http.StatusNotFound, err.Error()
	case models.IsProviderUnavailable(err):
		return http.StatusServiceUnavailable, err.Error()
	case models.IsInconsistency(err):
		return http.StatusInternalServerError, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, msg := statusFor(err)
		req := c.Request()
		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.Error(err),
		}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Info("request rejected", fields...)
		}
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}
}

func metricsMiddleware(m *telemetry.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(route, c.Request().Method, strconv.Itoa(c.Response().Status), start)
			return nil
		}
	}
}

// requestValidator adapts go-playground/validator to echo and reports the
// first failing field as a ValidationError.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

func (rv *requestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return models.NewValidationError(fe.Field(), "failed '"+fe.Tag()+"' check")
	}
	return models.NewValidationError("", err.Error())
}

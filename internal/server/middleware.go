package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"sogif-site/internal/constants"
)

const providerKey = "sogif.constants"

// ErrorResponse is the JSON envelope for every non-2xx API answer.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func errorBody(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// recovery turns panics into a 500 envelope.
func recovery(logger zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "An unexpected error occurred"))
	})
}

// corsHandler applies rs/cors to every request and answers preflights directly.
func corsHandler(origins []string) gin.HandlerFunc {
	policy := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         600,
	})
	return func(c *gin.Context) {
		policy.HandlerFunc(c.Writer, c.Request)
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// withConstants resolves the bundle once for the request and scopes it to a provider.
// When no bundle can be produced the request ends with a 503 fallback.
func (s *Server) withConstants(c *gin.Context) {
	bundle, err := s.cache.Scoped().Get(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("constants unavailable")
		c.Header("Retry-After", "30")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody("DATA_UNAVAILABLE", "Fund data is temporarily unavailable. Please try again shortly."))
		return
	}
	c.Set(providerKey, constants.NewProvider(bundle))
	c.Next()
}

// provider returns the request's provider, or nil outside withConstants.
func provider(c *gin.Context) *constants.Provider {
	v, ok := c.Get(providerKey)
	if !ok {
		return nil
	}
	p, _ := v.(*constants.Provider)
	return p
}

package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
)

// ContextUserID is the gin context key holding the authenticated user ID.
const ContextUserID = "userID"

// getUserID returns the authenticated user ID from the request context.
func getUserID(c *gin.Context) uint64 {
	value, exists := c.Get(ContextUserID)
	if !exists {
		return 0
	}
	id, ok := value.(uint64)
	if !ok {
		return 0
	}
	return id
}

// isUniqueViolation reports whether the error is a unique constraint
// violation on either supported dialect.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToUpper(err.Error()), "UNIQUE")
}

// Package handlers implements the API endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/db"
)

// respondError maps a classified error to its HTTP status and a
// caller-safe message. Unclassified errors become 500 with a generic
// body and a logged cause.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == 0 {
		log.WithError(err).Error("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(kind.HTTPStatus(), gin.H{"error": apperr.MessageOf(err)})
}

// writeTx runs fn in a write transaction with the dialect's write
// options, SERIALIZABLE on PostgreSQL. A serialization abort surfaces
// as an upstream error the client can retry.
func writeTx(c *gin.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	errTx := conn.WithContext(c.Request.Context()).Transaction(fn, db.WriteTxOptions(conn)...)
	if db.IsSerializationFailure(errTx) {
		return apperr.Upstream("the change conflicted with a concurrent update", errTx)
	}
	return errTx
}

package mongodb_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lllypuk/pulseboard/internal/domain/errs"
	"github.com/lllypuk/pulseboard/internal/infrastructure/repository/mongodb"
)

func TestHandleMongoError(t *testing.T) {
	assert.NoError(t, mongodb.HandleMongoError(nil, "notification"))

	notFound := mongodb.HandleMongoError(fmt.Errorf("find: %w", mongo.ErrNoDocuments), "notification")
	assert.ErrorIs(t, notFound, errs.ErrNotFound)
	assert.NotErrorIs(t, notFound, mongo.ErrNoDocuments)

	raw := errors.New("unexpected reply")
	wrapped := mongodb.HandleMongoError(raw, "notification")
	assert.ErrorIs(t, wrapped, raw)
	assert.Contains(t, wrapped.Error(), "notification")
}

func TestHandleMongoError_Unavailable(t *testing.T) {
	for _, err := range []error{mongo.ErrClientDisconnected, context.DeadlineExceeded} {
		mapped := mongodb.HandleMongoError(err, "notifications")
		assert.ErrorIs(t, mapped, errs.ErrUnavailable)
		assert.ErrorIs(t, mapped, err)
	}
}

func TestHandleMongoError_DuplicateKey(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	mapped := mongodb.HandleMongoError(dup, "notification sequence")
	assert.ErrorIs(t, mapped, errs.ErrAlreadyExists)
	assert.Contains(t, mapped.Error(), "notification sequence")
}

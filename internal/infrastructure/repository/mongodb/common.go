package mongodb

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lllypuk/pulseboard/internal/domain/errs"
)

// HandleMongoError translates a driver error for resource into the domain
// vocabulary. The driver error stays in the chain except for lookups that
// found nothing.
func HandleMongoError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return errs.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", resource, errs.ErrAlreadyExists)
	case errors.Is(err, mongo.ErrClientDisconnected), mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return fmt.Errorf("%w: %s: %w", errs.ErrUnavailable, resource, err)
	default:
		return fmt.Errorf("failed to operate on %s: %w", resource, err)
	}
}

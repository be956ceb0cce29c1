package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/pulseboard/internal/domain/errs"
	notificationdomain "github.com/lllypuk/pulseboard/internal/domain/notification"
)

// notificationSequence is the counters document holding the last issued id.
const notificationSequence = "notifications"

// MongoNotificationRepository implements notificationapp.Repository on MongoDB.
// Ids come from an atomic $inc on the counters collection, so they stay
// unique and increasing across every process sharing the database.
type MongoNotificationRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
	now        func() time.Time
}

// NotificationRepoOption configures MongoNotificationRepository.
type NotificationRepoOption func(*MongoNotificationRepository)

// WithNotificationClock overrides the time source used for created_at.
func WithNotificationClock(now func() time.Time) NotificationRepoOption {
	return func(r *MongoNotificationRepository) {
		r.now = now
	}
}

// NewMongoNotificationRepository creates a repository over the notifications
// and counters collections.
func NewMongoNotificationRepository(
	collection *mongo.Collection,
	counters *mongo.Collection,
	opts ...NotificationRepoOption,
) *MongoNotificationRepository {
	r := &MongoNotificationRepository{
		collection: collection,
		counters:   counters,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores the notification under the next sequence value.
func (r *MongoNotificationRepository) Create(
	ctx context.Context,
	n *notificationdomain.Notification,
) (*notificationdomain.Notification, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: notification is nil", errs.ErrInvalidInput)
	}

	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	// Mongo keeps millisecond precision, truncate so the returned copy matches reads
	stored := n.Stored(id, r.now().UTC().Truncate(time.Millisecond))
	doc := notificationToDocument(stored)

	if _, err = r.collection.InsertOne(ctx, doc); err != nil {
		return nil, HandleMongoError(err, "notification")
	}

	return stored, nil
}

// FindByID finds a notification by id.
func (r *MongoNotificationRepository) FindByID(
	ctx context.Context,
	id int64,
) (*notificationdomain.Notification, error) {
	var doc notificationDocument
	err := r.collection.FindOne(ctx, bson.M{"notification_id": id}).Decode(&doc)
	if err != nil {
		return nil, HandleMongoError(err, "notification")
	}

	return documentToNotification(&doc), nil
}

// FindByUserID returns the user's notifications, most recent first.
func (r *MongoNotificationRepository) FindByUserID(
	ctx context.Context,
	userID notificationdomain.UserID,
) ([]*notificationdomain.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "notification_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID.String()}, opts)
	if err != nil {
		return nil, HandleMongoError(err, "notifications")
	}
	defer cursor.Close(ctx)

	var docs []notificationDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, HandleMongoError(err, "notifications")
	}

	result := make([]*notificationdomain.Notification, 0, len(docs))
	for i := range docs {
		result = append(result, documentToNotification(&docs[i]))
	}
	return result, nil
}

// MarkAsRead sets is_read and returns the updated notification.
func (r *MongoNotificationRepository) MarkAsRead(
	ctx context.Context,
	id int64,
) (*notificationdomain.Notification, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc notificationDocument
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"notification_id": id},
		bson.M{"$set": bson.M{"is_read": true}},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, HandleMongoError(err, "notification")
	}

	return documentToNotification(&doc), nil
}

// MarkAllAsRead marks every unread notification of the user as read.
func (r *MongoNotificationRepository) MarkAllAsRead(ctx context.Context, userID notificationdomain.UserID) (int, error) {
	res, err := r.collection.UpdateMany(
		ctx,
		bson.M{"user_id": userID.String(), "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, HandleMongoError(err, "notifications")
	}
	return int(res.ModifiedCount), nil
}

// Delete removes a notification. Deleting a missing id is not an error.
func (r *MongoNotificationRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"notification_id": id})
	return HandleMongoError(err, "notification")
}

// DeleteByUserID removes every notification of the user.
func (r *MongoNotificationRepository) DeleteByUserID(ctx context.Context, userID notificationdomain.UserID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID.String()})
	return HandleMongoError(err, "notifications")
}

// nextID atomically increments the sequence and returns the new value.
func (r *MongoNotificationRepository) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter counterDocument
	err := r.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": notificationSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, HandleMongoError(err, "notification sequence")
	}

	return counter.Seq, nil
}

type counterDocument struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

type notificationDocument struct {
	NotificationID int64     `bson:"notification_id"`
	UserID         string    `bson:"user_id"`
	Title          string    `bson:"title"`
	Message        string    `bson:"message"`
	Type           string    `bson:"type"`
	IsRead         bool      `bson:"is_read"`
	CreatedAt      time.Time `bson:"created_at"`
}

func notificationToDocument(n *notificationdomain.Notification) notificationDocument {
	return notificationDocument{
		NotificationID: n.ID(),
		UserID:         n.UserID().String(),
		Title:          n.Title(),
		Message:        n.Message(),
		Type:           string(n.Kind()),
		IsRead:         n.IsRead(),
		CreatedAt:      n.CreatedAt(),
	}
}

func documentToNotification(doc *notificationDocument) *notificationdomain.Notification {
	return notificationdomain.Reconstruct(
		doc.NotificationID,
		notificationdomain.UserID(doc.UserID),
		doc.Title,
		doc.Message,
		notificationdomain.Kind(doc.Type),
		doc.CreatedAt.UTC(),
		doc.IsRead,
	)
}

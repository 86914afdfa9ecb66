package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("events"),
		logger: logger,
	}
}

type EventDoc struct {
	ID               string    `bson:"_id"`
	Title            string    `bson:"title"`
	Date             string    `bson:"date"`
	Time             string    `bson:"time"`
	Location         string    `bson:"location"`
	Description      string    `bson:"description"`
	ImageURL         string    `bson:"image_url"`
	Status           string    `bson:"status"`
	TicketsAvailable int       `bson:"tickets_available"`
	GalleryImages    []string  `bson:"gallery_images"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func (d EventDoc) toDomain() domain.Event {
	gallery := d.GalleryImages
	if gallery == nil {
		gallery = []string{}
	}
	return domain.Event{
		ID:               d.ID,
		Title:            d.Title,
		Date:             d.Date,
		Time:             d.Time,
		Location:         d.Location,
		Description:      d.Description,
		ImageURL:         d.ImageURL,
		Status:           d.Status,
		TicketsAvailable: d.TicketsAvailable,
		GalleryImages:    gallery,
	}
}

func (c *CatalogRepository) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	var doc EventDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.WithError(err).Error("failed to get event")
		return nil, err
	}
	ev := doc.toDomain()
	return &ev, nil
}

// ListEvents returns events ordered by date; an empty status lists all of them.
func (c *CatalogRepository) ListEvents(ctx context.Context, status string) ([]domain.Event, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cur, err := c.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}))
	if err != nil {
		c.logger.WithError(err).Error("failed to list events")
		return nil, err
	}
	var docs []EventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, d.toDomain())
	}
	return events, nil
}

func (c *CatalogRepository) UpsertEvent(ctx context.Context, ev domain.Event) error {
	now := time.Now().UTC()
	_, err := c.coll.UpdateOne(ctx,
		bson.M{"_id": ev.ID},
		bson.M{
			"$set": bson.M{
				"title":             ev.Title,
				"date":              ev.Date,
				"time":              ev.Time,
				"location":          ev.Location,
				"description":       ev.Description,
				"image_url":         ev.ImageURL,
				"status":            ev.Status,
				"tickets_available": ev.TicketsAvailable,
				"gallery_images":    ev.GalleryImages,
				"updated_at":        now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		c.logger.WithError(err).Error("failed to upsert event")
		return err
	}
	return nil
}

package identity

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"social-backend/internal/db"
	"social-backend/internal/models"
)

// userDoc mirrors the fields of the account service's user documents we read.
type userDoc struct {
	Name string `bson:"name"`
	Pfp  struct {
		URL string `bson:"url"`
	} `bson:"pfp"`
}

// MongoDirectory reads the users collection. Ids that parse as ObjectIDs are
// matched as such, anything else as a plain string id.
type MongoDirectory struct {
	coll *mongo.Collection
}

func NewMongoDirectory(database *mongo.Database) *MongoDirectory {
	return &MongoDirectory{coll: database.Collection(db.UsersCollection)}
}

func (d *MongoDirectory) DisplayInfo(ctx context.Context, userID string) (*models.DisplayInfo, error) {
	var key interface{} = userID
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		key = oid
	}

	opts := options.FindOne().SetProjection(bson.M{"name": 1, "pfp.url": 1})
	var doc userDoc
	err := d.coll.FindOne(ctx, bson.M{"_id": key}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup display info")
	}
	return &models.DisplayInfo{ID: userID, Name: doc.Name, AvatarURL: doc.Pfp.URL}, nil
}

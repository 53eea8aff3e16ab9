package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go_trial/foodhub/models"
	"go_trial/foodhub/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is the MongoDB backed Store.
type Mongo struct {
	client   *mongo.Client
	users    *mongo.Collection
	shops    *mongo.Collection
	menu     *mongo.Collection
	orders   *mongo.Collection
	reviews  *mongo.Collection
	counters *mongo.Collection
	timeout  time.Duration
}

func NewMongo(client *mongo.Client, dbName string) *Mongo {
	return &Mongo{
		client:   client,
		users:    utils.GetCollection(client, dbName, "users"),
		shops:    utils.GetCollection(client, dbName, "shops"),
		menu:     utils.GetCollection(client, dbName, "menuitems"),
		orders:   utils.GetCollection(client, dbName, "orders"),
		reviews:  utils.GetCollection(client, dbName, "reviews"),
		counters: utils.GetCollection(client, dbName, "counters"),
		timeout:  5 * time.Second,
	}
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, m.timeout)
}

// EnsureIndexes creates the unique and lookup indexes the queries rely on.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		m.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		m.shops: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "owner", Value: 1}}},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "isActive", Value: 1}}},
		},
		m.menu: {
			{Keys: bson.D{{Key: "shop", Value: 1}, {Key: "category", Value: 1}}},
		},
		m.orders: {
			{Keys: bson.D{{Key: "orderNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "customer", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "shop", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		m.reviews: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "order", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "shop", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for coll, idx := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts *options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findPage[T any](ctx context.Context, coll *mongo.Collection, filter any, sortDoc bson.D, p Page) ([]T, int64, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(sortDoc)
	if p.Limit > 0 {
		opts.SetSkip(p.Skip()).SetLimit(int64(p.Limit))
	}
	items, err := findAll[T](ctx, coll, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func sortDoc(expr, fallback string, allowed map[string]bool) bson.D {
	var d bson.D
	for _, f := range parseSort(expr) {
		if !allowed[f.name] {
			continue
		}
		dir := 1
		if f.desc {
			dir = -1
		}
		d = append(d, bson.E{Key: f.name, Value: dir})
	}
	if len(d) == 0 && fallback != "" {
		return sortDoc(fallback, "", allowed)
	}
	return d
}

func searchRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func boolFilter(filter bson.M, key string, v *bool) {
	if v != nil {
		filter[key] = *v
	}
}

func toggle(field string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: field, Value: bson.D{{Key: "$not", Value: bson.A{"$" + field}}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
	}
}

var returnAfter = options.FindOneAndUpdate().SetReturnDocument(options.After)

// Users

func (m *Mongo) CreateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := m.users.InsertOne(ctx, u)
	return translate("insert user", err)
}

func (m *Mongo) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return m.findUser(ctx, bson.M{"_id": id})
}

func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"email": strings.ToLower(email)})
}

func (m *Mongo) UserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	return m.findUser(ctx, bson.M{
		"resetPasswordToken":  tokenHash,
		"resetPasswordExpire": bson.M{"$gt": now},
	})
}

func (m *Mongo) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	var u models.User
	if err := m.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, translate("find user", err)
	}
	return &u, nil
}

func (m *Mongo) SaveUser(ctx context.Context, u *models.User) error {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	u.Email = strings.ToLower(u.Email)
	u.UpdatedAt = time.Now().UTC()
	res, err := m.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return translate("save user", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) ToggleUserActive(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	var u models.User
	err := m.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, toggle("isActive"), returnAfter).Decode(&u)
	if err != nil {
		return nil, translate("toggle user", err)
	}
	return &u, nil
}

func (m *Mongo) ListUsers(ctx context.Context, f UserFilter, p Page) ([]models.User, int64, error) {
	ctx, cancel := m.ctx(ctx)
	defer cancel()
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Search != "" {
		filter["$or"] = bson.A{bson.M{"name": searchRegex(f.Search)}, bson.M{"email": searchRegex(f.Search)}}
	}
	users, total, err := findPage[models.User](ctx, m.users, filter, bson.D{{Key: "createdAt", Value: -1}}, p)
	return users, total, translate("list users", err)
}

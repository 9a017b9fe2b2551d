package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"leetbot/internal/domain"
	logx "leetbot/pkg/logx"
)

// mongoStore maps each collection of the document layout onto a MongoDB
// collection. Daily records use "<guild>:<date>" as _id so the unique
// index on _id enforces the idempotency key.
type mongoStore struct {
	client *mongo.Client
	log    logx.Logger

	users   *mongo.Collection
	configs *mongo.Collection
	daily   *mongo.Collection
	solves  *mongo.Collection

	now func() time.Time
}

type mongoDaily struct {
	ID                        string `bson:"_id"`
	domain.DailyProblemRecord `bson:",inline"`
}

func openMongo(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, errors.New("storage.uri is required for mongo driver")
	}
	dbName := strings.TrimSpace(cfg.Database)
	if dbName == "" {
		dbName = "leetbot"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri).SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	log.Info("connected to mongo", logx.String("database", dbName))
	return newMongoStore(client, client.Database(dbName), log), nil
}

func newMongoStore(client *mongo.Client, db *mongo.Database, log logx.Logger) *mongoStore {
	return &mongoStore{
		client:  client,
		log:     log,
		users:   db.Collection("users"),
		configs: db.Collection("configs"),
		daily:   db.Collection("daily_problems"),
		solves:  db.Collection("user_solves"),
		now:     time.Now,
	}
}

func (s *mongoStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *mongoStore) GetUser(ctx context.Context, id string) (domain.User, bool, error) {
	var u domain.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("find user %s: %w", id, err)
	}
	return u, true, nil
}

func (s *mongoStore) SaveUser(ctx context.Context, u domain.User) error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("storage: user id is required")
	}
	update := bson.M{
		"$set": bson.M{
			"leetcode_username": u.Username,
			"solved_count":      u.SolvedCount,
			"streak":            u.Streak,
			"last_solve_date":   u.LastSolve,
		},
		"$setOnInsert": bson.M{"seq": s.now().UnixNano()},
	}
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": u.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

func (s *mongoStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var out []domain.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return out, nil
}

func (s *mongoStore) GetConfig(ctx context.Context, guildID string) (domain.GuildConfig, bool, error) {
	var c domain.GuildConfig
	err := s.configs.FindOne(ctx, bson.M{"_id": guildID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.GuildConfig{}, false, nil
	}
	if err != nil {
		return domain.GuildConfig{}, false, fmt.Errorf("find config %s: %w", guildID, err)
	}
	return c, true, nil
}

func (s *mongoStore) SaveConfig(ctx context.Context, c domain.GuildConfig) error {
	if strings.TrimSpace(c.GuildID) == "" {
		return errors.New("storage: guild id is required")
	}
	_, err := s.configs.ReplaceOne(ctx, bson.M{"_id": c.GuildID}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save config %s: %w", c.GuildID, err)
	}
	return nil
}

func (s *mongoStore) DeleteConfig(ctx context.Context, guildID string) (bool, error) {
	res, err := s.configs.DeleteOne(ctx, bson.M{"_id": guildID})
	if err != nil {
		return false, fmt.Errorf("delete config %s: %w", guildID, err)
	}
	return res.DeletedCount > 0, nil
}

func (s *mongoStore) ListConfigs(ctx context.Context) ([]domain.GuildConfig, error) {
	cur, err := s.configs.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	var out []domain.GuildConfig
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode configs: %w", err)
	}
	return out, nil
}

func (s *mongoStore) GetDailyRecord(ctx context.Context, guildID, date string) (domain.DailyProblemRecord, bool, error) {
	var d mongoDaily
	err := s.daily.FindOne(ctx, bson.M{"_id": domain.RecordKey(guildID, date)}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.DailyProblemRecord{}, false, nil
	}
	if err != nil {
		return domain.DailyProblemRecord{}, false, fmt.Errorf("find daily record: %w", err)
	}
	return d.DailyProblemRecord, true, nil
}

func (s *mongoStore) CreateDailyRecord(ctx context.Context, r domain.DailyProblemRecord) error {
	if r.GuildID == "" || r.Date == "" {
		return errors.New("storage: daily record needs guild and date")
	}
	_, err := s.daily.InsertOne(ctx, mongoDaily{ID: r.Key(), DailyProblemRecord: r})
	if mongo.IsDuplicateKeyError(err) {
		return ErrRecordExists
	}
	if err != nil {
		return fmt.Errorf("create daily record %s: %w", r.Key(), err)
	}
	return nil
}

func (s *mongoStore) AppendSolve(ctx context.Context, e domain.SolveEntry) error {
	if _, err := s.solves.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("append solve %s: %w", e.UserID, err)
	}
	return nil
}

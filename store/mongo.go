package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/researchaccelerator-hub/shorts-scraper/model"
)

// MongoStore persists records in MongoDB collections with unique-key
// upserts.
type MongoStore struct {
	client   *mongo.Client
	videos   *mongo.Collection
	channels *mongo.Collection
	logs     *mongo.Collection
	settings *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures the indexes the pipeline
// queries rely on.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		videos:   db.Collection("videos"),
		channels: db.Collection("channels"),
		logs:     db.Collection("logs"),
		settings: db.Collection("settings"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	log.Info().Str("database", database).Msg("Connected to MongoDB")
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.videos.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "platform", Value: 1}, {Key: "videoId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "downloadStatus", Value: 1}}},
		{Keys: bson.D{{Key: "discoveredAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create video indexes: %w", err)
	}

	_, err = s.channels.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "platform", Value: 1}, {Key: "channelId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "priority", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create channel indexes: %w", err)
	}

	_, err = s.logs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ranAt", Value: -1}}},
		{Keys: bson.D{{Key: "jobType", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create log indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) FindVideo(ctx context.Context, platform model.PlatformType, videoID string) (*model.Video, error) {
	return s.GetVideo(ctx, model.VideoKey(platform, videoID))
}

func (s *MongoStore) GetVideo(ctx context.Context, key string) (*model.Video, error) {
	var v model.Video
	err := s.videos.FindOne(ctx, bson.M{"_id": key}).Decode(&v)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find video %s: %w", key, err)
	}
	return &v, nil
}

func (s *MongoStore) UpsertVideo(ctx context.Context, v model.Video) (*model.Video, error) {
	now := time.Now().UTC()
	key := model.VideoKey(v.Platform, v.VideoID)

	update := bson.M{
		"$set": bson.M{
			"platform":   v.Platform,
			"videoId":    v.VideoID,
			"title":      v.Title,
			"views":      v.Views,
			"url":        v.URL,
			"topic":      v.Topic,
			"thumbnail":  v.Thumbnail,
			"channelRef": v.ChannelRef,
			"updatedAt":  now,
		},
		"$setOnInsert": bson.M{
			"downloadStatus": model.StatusPending,
			"discoveredAt":   now,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var out model.Video
	if err := s.videos.FindOneAndUpdate(ctx, bson.M{"_id": key}, update, opts).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to upsert video %s: %w", key, err)
	}
	return &out, nil
}

func (s *MongoStore) ListVideos(ctx context.Context, filter VideoFilter) ([]model.Video, int64, error) {
	query := bson.M{}
	if filter.Platform != "" {
		query["platform"] = filter.Platform
	}
	if filter.Topic != "" {
		query["topic"] = filter.Topic
	}
	if filter.Status != "" {
		query["downloadStatus"] = filter.Status
	}
	if filter.MinViews > 0 {
		query["views"] = bson.M{"$gte": filter.MinViews}
	}
	if !filter.From.IsZero() || !filter.To.IsZero() {
		span := bson.M{}
		if !filter.From.IsZero() {
			span["$gte"] = filter.From
		}
		if !filter.To.IsZero() {
			span["$lte"] = filter.To
		}
		query["discoveredAt"] = span
	}

	total, err := s.videos.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "discoveredAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.videos.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list videos: %w", err)
	}
	defer cursor.Close(ctx)

	var items []model.Video
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to decode videos: %w", err)
	}
	return items, total, nil
}

func (s *MongoStore) CountVideosByStatus(ctx context.Context) (map[model.DownloadStatus]int64, error) {
	counts := make(map[model.DownloadStatus]int64, 4)
	for _, status := range []model.DownloadStatus{model.StatusPending, model.StatusDownloading, model.StatusDone, model.StatusFailed} {
		n, err := s.videos.CountDocuments(ctx, bson.M{"downloadStatus": status})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s videos: %w", status, err)
		}
		counts[status] = n
	}
	return counts, nil
}

func (s *MongoStore) updateVideo(ctx context.Context, key string, set bson.M) error {
	set["updatedAt"] = time.Now().UTC()
	res, err := s.videos.UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update video %s: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) MarkVideoDownloading(ctx context.Context, key string) error {
	return s.updateVideo(ctx, key, bson.M{"downloadStatus": model.StatusDownloading})
}

func (s *MongoStore) MarkVideoDone(ctx context.Context, key, localPath string, at time.Time) error {
	return s.updateVideo(ctx, key, bson.M{
		"downloadStatus": model.StatusDone,
		"localPath":      localPath,
		"downloadedAt":   at,
		"failReason":     "",
	})
}

func (s *MongoStore) MarkVideoFailed(ctx context.Context, key, reason string) error {
	return s.updateVideo(ctx, key, bson.M{
		"downloadStatus": model.StatusFailed,
		"failReason":     reason,
	})
}

func (s *MongoStore) MarkVideoPending(ctx context.Context, key, reason string) error {
	return s.updateVideo(ctx, key, bson.M{
		"downloadStatus": model.StatusPending,
		"failReason":     reason,
	})
}

func (s *MongoStore) SetVideoDriveInfo(ctx context.Context, key, fileID, webViewLink, folderID string) error {
	return s.updateVideo(ctx, key, bson.M{
		"driveFileId":      fileID,
		"driveWebViewLink": webViewLink,
		"driveFolderId":    folderID,
	})
}

func (s *MongoStore) UpsertChannel(ctx context.Context, platform model.PlatformType, channelID, name, topic string, followers int64) (*model.Channel, error) {
	now := time.Now().UTC()
	key := model.ChannelKey(platform, channelID)

	update := bson.M{
		"$set": bson.M{
			"platform":  platform,
			"channelId": channelID,
			"name":      name,
			"followers": followers,
			"updatedAt": now,
		},
		"$addToSet": bson.M{"topic": topic},
		"$setOnInsert": bson.M{
			"isActive":    true,
			"priority":    model.DefaultChannelPriority,
			"totalVideos": int64(0),
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var out model.Channel
	if err := s.channels.FindOneAndUpdate(ctx, bson.M{"_id": key}, update, opts).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to upsert channel %s: %w", key, err)
	}
	return &out, nil
}

func (s *MongoStore) IncrementChannelVideoCount(ctx context.Context, key string) (int64, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out model.Channel
	err := s.channels.FindOneAndUpdate(ctx, bson.M{"_id": key}, bson.M{"$inc": bson.M{"totalVideos": 1}}, opts).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment channel %s: %w", key, err)
	}
	return out.TotalVideos, nil
}

func (s *MongoStore) GetChannel(ctx context.Context, key string) (*model.Channel, error) {
	var ch model.Channel
	err := s.channels.FindOne(ctx, bson.M{"_id": key}).Decode(&ch)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find channel %s: %w", key, err)
	}
	return &ch, nil
}

func (s *MongoStore) ListActiveChannels(ctx context.Context, limit int) ([]model.Channel, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "priority", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.channels.Find(ctx, bson.M{"isActive": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list active channels: %w", err)
	}
	defer cursor.Close(ctx)

	var items []model.Channel
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode channels: %w", err)
	}
	return items, nil
}

func (s *MongoStore) ListChannels(ctx context.Context, filter ChannelFilter) ([]model.Channel, int64, error) {
	query := bson.M{}
	if filter.Search != "" {
		query["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": filter.Search, "$options": "i"}},
			bson.M{"channelId": bson.M{"$regex": filter.Search, "$options": "i"}},
		}
	}

	total, err := s.channels.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count channels: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "updatedAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.channels.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list channels: %w", err)
	}
	defer cursor.Close(ctx)

	var items []model.Channel
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to decode channels: %w", err)
	}
	return items, total, nil
}

func (s *MongoStore) TouchChannelScanned(ctx context.Context, key string, at time.Time) error {
	res, err := s.channels.UpdateOne(ctx, bson.M{"_id": key}, bson.M{
		"$set": bson.M{"lastScanned": at, "updatedAt": at},
	})
	if err != nil {
		return fmt.Errorf("failed to stamp channel %s: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) InsertJobLog(ctx context.Context, entry model.JobLog) error {
	if _, err := s.logs.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert job log: %w", err)
	}
	return nil
}

func (s *MongoStore) ListJobLogs(ctx context.Context, filter JobLogFilter) ([]model.JobLog, error) {
	query := bson.M{}
	if filter.JobType != "" {
		query["jobType"] = filter.JobType
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if !filter.From.IsZero() || !filter.To.IsZero() {
		span := bson.M{}
		if !filter.From.IsZero() {
			span["$gte"] = filter.From
		}
		if !filter.To.IsZero() {
			span["$lte"] = filter.To
		}
		query["ranAt"] = span
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	opts := options.Find().SetSort(bson.D{{Key: "ranAt", Value: -1}}).SetLimit(int64(limit))

	cursor, err := s.logs.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list job logs: %w", err)
	}
	defer cursor.Close(ctx)

	var items []model.JobLog
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode job logs: %w", err)
	}
	return items, nil
}

func (s *MongoStore) GetSettings(ctx context.Context) (model.Settings, error) {
	var out model.Settings
	err := s.settings.FindOne(ctx, bson.M{"_id": model.SettingsDocID}).Decode(&out)
	if err == nil {
		return out, nil
	}
	if err != mongo.ErrNoDocuments {
		return model.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	defaults := model.DefaultSettings()
	defaults.UpdatedAt = time.Now().UTC()
	if _, err := s.settings.InsertOne(ctx, defaults); err != nil {
		// A concurrent first run may have inserted the document already.
		if mongo.IsDuplicateKeyError(err) {
			return s.GetSettings(ctx)
		}
		return model.Settings{}, fmt.Errorf("failed to create default settings: %w", err)
	}
	return defaults, nil
}

func (s *MongoStore) UpdateSettings(ctx context.Context, in model.Settings) (model.Settings, error) {
	in.ID = model.SettingsDocID
	in.UpdatedAt = time.Now().UTC()

	opts := options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.After)
	var out model.Settings
	if err := s.settings.FindOneAndReplace(ctx, bson.M{"_id": model.SettingsDocID}, in, opts).Decode(&out); err != nil {
		return model.Settings{}, fmt.Errorf("failed to update settings: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

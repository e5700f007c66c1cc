package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disgoorg/snowflake/v2"
	"github.com/nickstarform/starbot/starbot/giveaway"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveService writes guild giveaway snapshots to a Spaces bucket before
// the records are purged.
type ArchiveService struct {
	client objectPutter
	bucket string
	region string
	root   string
	now    func() time.Time
}

func NewArchiveService(ctx context.Context, spacesKey, spacesSecret, region, bucket, root string) (*ArchiveService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return newArchiveService(s3.NewFromConfig(cfg), bucket, region, root), nil
}

func newArchiveService(client objectPutter, bucket, region, root string) *ArchiveService {
	return &ArchiveService{
		client: client,
		bucket: bucket,
		region: region,
		root:   strings.Trim(root, "/"),
		now:    time.Now,
	}
}

type archivedGiveaway struct {
	AnnouncementID  string   `json:"announcement_id"`
	ChannelID       string   `json:"channel_id"`
	HostID          string   `json:"host_id"`
	Description     string   `json:"description"`
	WinnerCount     int      `json:"winner_count"`
	Status          string   `json:"status"`
	Winners         []string `json:"winners"`
	ResultMessageID string   `json:"result_message_id,omitempty"`
	CreatedAt       string   `json:"created_at"`
	EndsAt          string   `json:"ends_at"`
}

type guildArchive struct {
	GuildID    string             `json:"guild_id"`
	ArchivedAt string             `json:"archived_at"`
	Giveaways  []archivedGiveaway `json:"giveaways"`
}

func (s *ArchiveService) ArchiveGuild(ctx context.Context, guildID snowflake.ID, giveaways []*giveaway.Giveaway) error {
	now := s.now().UTC()
	body, err := buildArchive(guildID, now, giveaways)
	if err != nil {
		return err
	}

	key := s.archiveKey(guildID, now)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", key, err)
	}

	slog.Info("Guild giveaways archived",
		slog.String("type", "giveaway"),
		slog.String("guild_id", guildID.String()),
		slog.String("key", key),
		slog.Int("count", len(giveaways)))
	return nil
}

func (s *ArchiveService) archiveKey(guildID snowflake.ID, at time.Time) string {
	name := fmt.Sprintf("%s.json", at.Format("20060102T150405Z"))
	if s.root == "" {
		return path.Join(guildID.String(), name)
	}
	return path.Join(s.root, guildID.String(), name)
}

func buildArchive(guildID snowflake.ID, at time.Time, giveaways []*giveaway.Giveaway) ([]byte, error) {
	archive := guildArchive{
		GuildID:    guildID.String(),
		ArchivedAt: at.Format(time.RFC3339),
		Giveaways:  make([]archivedGiveaway, 0, len(giveaways)),
	}
	for _, g := range giveaways {
		winners := make([]string, len(g.Winners))
		for i, w := range g.Winners {
			winners[i] = w.String()
		}
		entry := archivedGiveaway{
			AnnouncementID: g.AnnouncementID.String(),
			ChannelID:      g.ChannelID.String(),
			HostID:         g.HostID.String(),
			Description:    g.Description,
			WinnerCount:    g.WinnerCount,
			Status:         string(g.Status),
			Winners:        winners,
			CreatedAt:      g.CreatedAt.UTC().Format(time.RFC3339),
			EndsAt:         g.EndsAt.UTC().Format(time.RFC3339),
		}
		if g.ResultMessageID != 0 {
			entry.ResultMessageID = g.ResultMessageID.String()
		}
		archive.Giveaways = append(archive.Giveaways, entry)
	}

	body, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode archive: %w", err)
	}
	return body, nil
}

func (s *ArchiveService) GetBucket() string {
	return s.bucket
}

func (s *ArchiveService) GetRegion() string {
	return s.region
}

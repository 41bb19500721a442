// Package uploader integrates with Google Drive as the cloud-storage
// collaborator. Every failure is reported as a non-fatal result: an upload
// problem must never undo a completed download.
package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/researchaccelerator-hub/shorts-scraper/model"
)

// Result describes one upload attempt.
type Result struct {
	Success     bool   `json:"success"`
	FileID      string `json:"fileId,omitempty"`
	WebViewLink string `json:"webViewLink,omitempty"`
	FolderID    string `json:"folderId,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Uploader is the contract the download worker hands finished files to.
type Uploader interface {
	Upload(ctx context.Context, localPath string, platform model.PlatformType, metadata map[string]string) Result
}

// Disabled is used when no Drive credentials are configured.
type Disabled struct{}

// Upload reports the integration as switched off.
func (Disabled) Upload(context.Context, string, model.PlatformType, map[string]string) Result {
	return Result{Success: false, Message: "drive upload disabled"}
}

const folderMimeType = "application/vnd.google-apps.folder"

// rootFolderName anchors the folder chain created under the Drive root.
const rootFolderName = "Shorts Scraper"

// Drive uploads finished downloads into a per-platform folder chain,
// caching resolved folder IDs across calls.
type Drive struct {
	svc *drive.Service

	mu      sync.Mutex
	folders map[string]string
}

// NewDrive builds a Drive uploader from a credentials file.
func NewDrive(ctx context.Context, credentialsFile string) (*Drive, error) {
	svc, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Drive{svc: svc, folders: make(map[string]string)}, nil
}

// Upload pushes the file into <root>/Videos/Downloaded/<Platform> and makes
// it link-readable. Errors come back inside the Result, never as an error
// value.
func (d *Drive) Upload(ctx context.Context, localPath string, platform model.PlatformType, metadata map[string]string) Result {
	folderID, err := d.ensurePlatformFolder(ctx, platform)
	if err != nil {
		log.Warn().Err(err).Str("platform", string(platform)).Msg("Drive folder resolution failed")
		return Result{Success: false, Message: err.Error()}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("open %s: %v", localPath, err)}
	}
	defer f.Close()

	meta := &drive.File{
		Name:        filepath.Base(localPath),
		Parents:     []string{folderID},
		Description: "Auto uploaded after scraping download",
		Properties:  metadata,
	}
	created, err := d.svc.Files.Create(meta).
		Media(f).
		Fields("id", "name", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		log.Warn().Err(err).Str("path", localPath).Msg("Drive upload failed")
		return Result{Success: false, Message: err.Error()}
	}

	_, err = d.svc.Permissions.Create(created.Id, &drive.Permission{Role: "reader", Type: "anyone"}).
		Context(ctx).
		Do()
	if err != nil {
		// The file is uploaded; a failed share only loses the public link.
		log.Warn().Err(err).Str("file_id", created.Id).Msg("Failed to make drive file public")
	}

	return Result{
		Success:     true,
		FileID:      created.Id,
		WebViewLink: created.WebViewLink,
		FolderID:    folderID,
	}
}

func (d *Drive) ensurePlatformFolder(ctx context.Context, platform model.PlatformType) (string, error) {
	var leaf string
	switch platform {
	case model.PlatformYouTube:
		leaf = "Youtube"
	case model.PlatformFacebook:
		leaf = "Reels"
	default:
		leaf = "Other"
	}

	parent := "root"
	path := ""
	for _, name := range []string{rootFolderName, "Videos", "Downloaded", leaf} {
		path = path + "/" + name
		id, err := d.ensureFolder(ctx, path, name, parent)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

func (d *Drive) ensureFolder(ctx context.Context, cacheKey, name, parentID string) (string, error) {
	d.mu.Lock()
	if id, ok := d.folders[cacheKey]; ok {
		d.mu.Unlock()
		return id, nil
	}
	d.mu.Unlock()

	q := fmt.Sprintf("name='%s' and mimeType='%s' and '%s' in parents and trashed=false", name, folderMimeType, parentID)
	res, err := d.svc.Files.List().Q(q).Spaces("drive").Fields("files(id,name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up drive folder %s: %w", name, err)
	}

	var id string
	if len(res.Files) > 0 {
		id = res.Files[0].Id
	} else {
		created, err := d.svc.Files.Create(&drive.File{
			Name:     name,
			MimeType: folderMimeType,
			Parents:  []string{parentID},
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("failed to create drive folder %s: %w", name, err)
		}
		id = created.Id
	}

	d.mu.Lock()
	d.folders[cacheKey] = id
	d.mu.Unlock()
	return id, nil
}

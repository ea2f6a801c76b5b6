package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/config"
)

const (
	driveUploadURL = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart&fields=id"
	drivePublicURL = "https://drive.google.com/uc?id=%s"
	driveScope     = "https://www.googleapis.com/auth/drive"
)

// DriveStore uploads blobs into one Google Drive folder using a
// service account.
type DriveStore struct {
	folderID  string
	uploadURL string
	publicURL string
	client    *http.Client
}

// NewDriveStore builds a DriveStore from the service-account
// credentials file. Returns nil when no credentials are configured;
// callers treat a nil store as "uploads disabled".
func NewDriveStore(ctx context.Context, cfg config.DriveConfig) (*DriveStore, error) {
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		return nil, nil
	}
	raw, errRead := os.ReadFile(cfg.CredentialsFile)
	if errRead != nil {
		return nil, fmt.Errorf("storage: read drive credentials: %w", errRead)
	}
	jwtCfg, errParse := google.JWTConfigFromJSON(raw, driveScope)
	if errParse != nil {
		return nil, fmt.Errorf("storage: parse drive credentials: %w", errParse)
	}
	client := oauth2.NewClient(ctx, jwtCfg.TokenSource(ctx))
	client.Timeout = 60 * time.Second
	return &DriveStore{
		folderID:  cfg.FolderID,
		uploadURL: driveUploadURL,
		publicURL: drivePublicURL,
		client:    client,
	}, nil
}

// newDriveStoreForTest wires a DriveStore against an arbitrary HTTP
// endpoint without credentials.
func newDriveStoreForTest(folderID, uploadURL string, client *http.Client) *DriveStore {
	return &DriveStore{
		folderID:  folderID,
		uploadURL: uploadURL,
		publicURL: drivePublicURL,
		client:    client,
	}
}

type driveFileMetadata struct {
	Name    string   `json:"name"`
	Parents []string `json:"parents,omitempty"`
}

type driveFileResponse struct {
	ID string `json:"id"`
}

// Upload sends the blob as a Drive multipart upload and returns the
// shared `uc?id=` URL. Filenames are prefixed with the upload time so
// repeated uploads of the same file never collide.
func (s *DriveStore) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	metadata := driveFileMetadata{
		Name: fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filename),
	}
	if s.folderID != "" {
		metadata.Parents = []string{s.folderID}
	}
	metadataJSON, errMarshal := json.Marshal(metadata)
	if errMarshal != nil {
		return "", errMarshal
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, errPart := writer.CreatePart(metaHeader)
	if errPart != nil {
		return "", errPart
	}
	if _, errWrite := metaPart.Write(metadataJSON); errWrite != nil {
		return "", errWrite
	}

	mediaHeader := textproto.MIMEHeader{}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	mediaHeader.Set("Content-Type", contentType)
	mediaPart, errPart := writer.CreatePart(mediaHeader)
	if errPart != nil {
		return "", errPart
	}
	if _, errWrite := mediaPart.Write(data); errWrite != nil {
		return "", errWrite
	}
	if errClose := writer.Close(); errClose != nil {
		return "", errClose
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, &body)
	if errReq != nil {
		return "", errReq
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, errDo := s.client.Do(req)
	if errDo != nil {
		return "", apperr.Upstream("drive upload failed", errDo)
	}
	defer resp.Body.Close()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return "", apperr.Upstream("drive response unreadable", errRead)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Upstream(fmt.Sprintf("drive upload rejected (status %d)", resp.StatusCode), nil)
	}
	var decoded driveFileResponse
	if errDecode := json.Unmarshal(raw, &decoded); errDecode != nil {
		return "", apperr.Upstream("drive returned malformed response", errDecode)
	}
	if decoded.ID == "" {
		return "", apperr.Upstream("drive returned no file id", nil)
	}
	return fmt.Sprintf(s.publicURL, decoded.ID), nil
}

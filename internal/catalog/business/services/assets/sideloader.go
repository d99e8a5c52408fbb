package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"pimsync_api/internal/catalog/storage"
	"pimsync_api/internal/syncerr"
	"pimsync_api/metrics"
	"pimsync_api/pkg/logger"
)

type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

const DefaultImageSize = 1200

type Request struct {
	RemoteAssetID string
	Kind          Kind
	Title         string
	Filename      string
	Ext           string
	AttachedTo    int64
	Author        string
}

type Config struct {
	AssetBaseURL string
	ImageSize    int
	TempDir      string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Sideloader downloads each remote asset once and records it as an attachment.
type Sideloader struct {
	records storage.RecordStore
	blobs   storage.BlobStore
	client  *http.Client
	cfg     Config
	log     logger.Logger
}

func NewSideloader(records storage.RecordStore, blobs storage.BlobStore, cfg Config, log logger.Logger) *Sideloader {
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = DefaultImageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.AssetBaseURL = strings.TrimRight(cfg.AssetBaseURL, "/")
	return &Sideloader{records: records, blobs: blobs, client: client, cfg: cfg, log: log.WithPrefix("assets")}
}

// URL builds the canonical asset URL; size only applies to images.
func (s *Sideloader) URL(assetID string, kind Kind, fileType string) string {
	query := url.Values{}
	if kind == KindDocument {
		query.Set("fileType", "pdf")
	} else {
		if fileType == "" {
			fileType = "jpg"
		}
		query.Set("fileType", fileType)
		query.Set("size", strconv.Itoa(s.cfg.ImageSize))
	}
	return s.cfg.AssetBaseURL + "/" + url.PathEscape(assetID) + "?" + query.Encode()
}

// Sideload returns the existing attachment for the asset id or downloads,
// stores and records it. Nothing is recorded when any step fails.
func (s *Sideloader) Sideload(ctx context.Context, req Request) (ref storage.AssetRef, err error) {
	if req.RemoteAssetID == "" {
		return storage.AssetRef{}, syncerr.Asset("asset-id-empty", "asset id is empty", nil)
	}

	existing, err := s.records.FindByExternalKey(ctx, storage.PostTypeAttachment, req.RemoteAssetID)
	if err != nil {
		return storage.AssetRef{}, err
	}
	if existing != nil {
		s.log.Debug("asset already sideloaded", "asset", req.RemoteAssetID, "record", existing.ID)
		return storage.AssetRef{
			RecordID:      existing.ID,
			RemoteAssetID: req.RemoteAssetID,
			URL:           existing.Fields.GUID,
			Filename:      existing.Fields.Name,
			MimeType:      existing.Fields.MimeType,
			Existing:      true,
		}, nil
	}

	defer func() { metrics.RecordAssetDownload(string(req.Kind), err) }()

	if req.Kind == KindDocument && req.Ext == "" {
		req.Ext = "pdf"
	}
	source := s.URL(req.RemoteAssetID, req.Kind, req.Ext)

	tmpPath, digest, contentType, err := s.download(ctx, source)
	if tmpPath != "" {
		defer os.Remove(tmpPath)
	}
	if err != nil {
		return storage.AssetRef{}, err
	}

	ext, mimeType, err := resolveExt(tmpPath, req.Ext, contentType)
	if err != nil {
		return storage.AssetRef{}, err
	}
	if filepath.Ext(tmpPath) != "."+ext {
		renamed := strings.TrimSuffix(tmpPath, filepath.Ext(tmpPath)) + "." + ext
		if err := os.Rename(tmpPath, renamed); err != nil {
			return storage.AssetRef{}, syncerr.Asset("file-error", "unable to rename temp file", err)
		}
		tmpPath = renamed
	}

	key := fmt.Sprintf("sha256/%s.%s", digest, ext)
	blobURL, err := s.store(ctx, key, mimeType, tmpPath)
	if err != nil {
		return storage.AssetRef{}, err
	}

	filename := req.Filename
	if filename == "" {
		filename = storage.Slugify(req.RemoteAssetID)
	}
	filename += "." + ext

	marker := storage.MetaRemoteImage
	if ext == "pdf" {
		marker = storage.MetaRemoteDocument
	}
	id, err := s.records.Insert(ctx, storage.Record{
		Type:        storage.PostTypeAttachment,
		ExternalKey: req.RemoteAssetID,
		Fields: storage.Fields{
			Title:    req.Title,
			Content:  req.Title,
			Excerpt:  req.Title,
			Status:   "inherit",
			Author:   req.Author,
			Name:     filename,
			ParentID: req.AttachedTo,
			MimeType: mimeType,
			GUID:     blobURL,
		},
		Meta: map[string]interface{}{
			storage.MetaRemoteID: req.RemoteAssetID,
			marker:               ext,
			storage.MetaBlobKey:  key,
			storage.MetaBlobURL:  blobURL,
			storage.MetaFilename: filename,
		},
	})
	if err != nil {
		return storage.AssetRef{}, syncerr.Asset("attachment-insert", "failed to record attachment "+req.RemoteAssetID, err)
	}

	s.log.Info("asset sideloaded", "asset", req.RemoteAssetID, "record", id, "key", key)
	return storage.AssetRef{
		RecordID:      id,
		RemoteAssetID: req.RemoteAssetID,
		BlobKey:       key,
		URL:           blobURL,
		Filename:      filename,
		MimeType:      mimeType,
	}, nil
}

func (s *Sideloader) download(ctx context.Context, source string) (path, digest, contentType string, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", "", "", syncerr.Asset("download-error", "failed to create download request", err)
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", "", "", syncerr.Asset("download-error", "failed to download asset", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", "", "", syncerr.Asset(fmt.Sprintf("download-error-%d", resp.StatusCode), "asset download failed", nil)
	}

	tmp, err := os.CreateTemp(s.cfg.TempDir, "pim-asset-*.tmp")
	if err != nil {
		return "", "", "", syncerr.Asset("file-error", "failed to create temp file", err)
	}
	hash := sha256.New()
	_, copyErr := io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		return tmp.Name(), "", "", syncerr.Asset("download-error", "failed to read asset body", copyErr)
	}
	if closeErr != nil {
		return tmp.Name(), "", "", syncerr.Asset("file-error", "failed to close temp file", closeErr)
	}
	return tmp.Name(), hex.EncodeToString(hash.Sum(nil)), resp.Header.Get("Content-Type"), nil
}

func (s *Sideloader) store(ctx context.Context, key, mimeType, path string) (string, error) {
	exists, err := s.blobs.Exists(ctx, key)
	if err != nil {
		return "", syncerr.Asset("blob-error", "failed to check blob", err)
	}
	if exists {
		return s.blobs.URL(key), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", syncerr.Asset("file-error", "failed to reopen temp file", err)
	}
	defer f.Close()
	blobURL, err := s.blobs.Put(ctx, key, mimeType, f)
	if err != nil {
		return "", syncerr.Asset("blob-error", "failed to upload blob", err)
	}
	return blobURL, nil
}

// resolveExt prefers the explicit extension, then the file magic, then the
// response content type.
func resolveExt(path, explicit, contentType string) (string, string, error) {
	if explicit = strings.TrimPrefix(strings.ToLower(explicit), "."); explicit != "" {
		mimeType := "application/octet-stream"
		if explicit == "jpg" {
			mimeType = "image/jpeg"
		} else if m := mimetype.Lookup(mimeForExt(explicit)); m != nil {
			mimeType = m.String()
		}
		return explicit, mimeType, nil
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return "", "", syncerr.Asset("file-error", "failed to sniff asset type", err)
	}
	if detected.Extension() == "" || detected.Is("application/octet-stream") {
		if ct := strings.TrimSpace(strings.Split(contentType, ";")[0]); ct != "" {
			if m := mimetype.Lookup(ct); m != nil && m.Extension() != "" {
				detected = m
			}
		}
	}
	ext := strings.TrimPrefix(detected.Extension(), ".")
	if ext == "" {
		return "", "", syncerr.Asset("unknown-file-type", "unable to determine asset extension", nil)
	}
	if ext == "jpeg" {
		ext = "jpg"
	}
	return ext, detected.String(), nil
}

func mimeForExt(ext string) string {
	switch ext {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "pdf":
		return "application/pdf"
	}
	return ""
}

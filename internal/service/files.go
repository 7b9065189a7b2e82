package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dtroode/dnavault-client/internal/api/http/client"
	"github.com/dtroode/dnavault-client/internal/events"
	"github.com/dtroode/dnavault-client/internal/logger"
	"github.com/dtroode/dnavault-client/internal/model"
)

const (
	pathFiles       = "/codec/api/v1/files"
	pathUpload      = "/codec/api/v1/upload"
	pathStats       = "/codec/api/v1/stats"
	thumbnailPrefix = "/codec"

	uploadField = "file"

	// maxErrorBody bounds how much of a failed download is read for its error.
	maxErrorBody = 1 << 20
)

// ErrInvalidFileID is returned for ids that cannot name a file.
var ErrInvalidFileID = errors.New("invalid file id")

// ErrNoExportStorage is returned by the export operations when no object storage is configured.
var ErrNoExportStorage = errors.New("export storage is not configured")

// ErrExportExists is returned by Export when the key is taken and overwrite was not asked for.
var ErrExportExists = errors.New("export already exists")

// envelope carries the status fields every file endpoint may answer with.
type envelope struct {
	Success   *bool  `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// failure returns the APIError described by the envelope, or nil.
func (e envelope) failure(status int) error {
	if client.IsSuccess(status) && (e.Success == nil || *e.Success) {
		return nil
	}

	message := e.Error
	if message == "" {
		message = e.Message
	}
	if message == "" {
		message = http.StatusText(status)
	}

	return &model.APIError{StatusCode: status, Code: e.ErrorCode, Message: message}
}

type Files struct {
	api            APIClient
	store          model.CredentialStore
	storage        model.Storage
	events         *events.Registry[model.FileUploaded]
	thumbnailToken bool
	busy           atomic.Bool
	logger         *logger.Logger
}

// FilesOption configures Files.
type FilesOption func(*Files)

// WithThumbnailToken appends the stored credential to thumbnail URLs.
func WithThumbnailToken(enabled bool) FilesOption {
	return func(f *Files) {
		f.thumbnailToken = enabled
	}
}

// WithExportStorage sets the object storage Export writes to.
func WithExportStorage(storage model.Storage) FilesOption {
	return func(f *Files) {
		f.storage = storage
	}
}

// NewFiles creates the file service. registry receives fileUploaded events.
func NewFiles(
	api APIClient,
	store model.CredentialStore,
	registry *events.Registry[model.FileUploaded],
	logger *logger.Logger,
	opts ...FilesOption,
) *Files {
	f := &Files{
		api:    api,
		store:  store,
		events: registry,
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Busy reports whether a List call is in flight.
func (f *Files) Busy() bool {
	return f.busy.Load()
}

// OnFileUploaded subscribes handler to successful uploads.
func (f *Files) OnFileUploaded(handler events.Handler[model.FileUploaded]) {
	f.events.Subscribe(events.FileUploaded, handler)
}

// List returns one page of files matching query.
func (f *Files) List(ctx context.Context, query model.FileQuery) (model.FileList, error) {
	f.busy.Store(true)
	defer f.busy.Store(false)

	var answer struct {
		envelope
		model.FileList
	}
	status, err := f.api.DoJSON(ctx, client.Request{
		Operation: "files.list",
		Method:    http.MethodGet,
		Path:      pathFiles,
		Query:     listQuery(query),
	}, nil, &answer)
	if err != nil {
		f.logger.Warn("Files service: failed to list files",
			"error", err.Error())
		return model.FileList{}, fmt.Errorf("failed to list files: %w", err)
	}
	if err := answer.failure(status); err != nil {
		f.logger.Info("Files service: list rejected",
			"status", status,
			"error", err.Error())
		return model.FileList{}, err
	}

	list := answer.FileList
	credential := f.thumbnailCredential(ctx)
	for i := range list.Files {
		list.Files[i].ThumbnailURL = f.thumbnailURL(list.Files[i].ThumbnailURL, credential)
	}

	return list, nil
}

// Upload sends r as a multipart file named name and fires fileUploaded on success.
func (f *Files) Upload(ctx context.Context, name string, r io.Reader) (json.RawMessage, error) {
	name = filepath.Base(name)

	pr, pw := io.Pipe()
	defer pr.Close()

	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile(uploadField, name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var raw json.RawMessage
	status, err := f.api.DoJSON(ctx, client.Request{
		Operation:   "files.upload",
		Method:      http.MethodPost,
		Path:        pathUpload,
		Body:        pr,
		ContentType: mw.FormDataContentType(),
	}, nil, &raw)
	if err != nil {
		f.logger.Warn("Files service: failed to upload file",
			"file_name", name,
			"error", err.Error())
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	if err := decodeFailure(raw, status); err != nil {
		f.logger.Info("Files service: upload rejected",
			"file_name", name,
			"status", status,
			"error", err.Error())
		return raw, err
	}

	f.events.Fire(ctx, events.FileUploaded, model.FileUploaded{FileName: name, Response: raw})

	f.logger.Info("Files service: file uploaded",
		"file_name", name)

	return raw, nil
}

// Stats returns aggregate statistics over the user's files.
func (f *Files) Stats(ctx context.Context) (model.Stats, error) {
	var answer struct {
		envelope
		model.Stats
	}
	status, err := f.api.DoJSON(ctx, client.Request{
		Operation: "files.stats",
		Method:    http.MethodGet,
		Path:      pathStats,
	}, nil, &answer)
	if err != nil {
		return model.Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	if err := answer.failure(status); err != nil {
		return model.Stats{}, err
	}

	return answer.Stats, nil
}

// Detail returns one file with its size breakdown and encoding parameters.
func (f *Files) Detail(ctx context.Context, id string) (model.FileDetail, error) {
	path, err := filePath(id, "")
	if err != nil {
		return model.FileDetail{}, err
	}

	var answer struct {
		envelope
		model.FileDetail
	}
	status, err := f.api.DoJSON(ctx, client.Request{
		Operation: "files.detail",
		Method:    http.MethodGet,
		Path:      path,
	}, nil, &answer)
	if err != nil {
		return model.FileDetail{}, fmt.Errorf("failed to get file %s: %w", id, err)
	}
	if err := answer.failure(status); err != nil {
		return model.FileDetail{}, err
	}

	detail := answer.FileDetail
	detail.ThumbnailURL = f.thumbnailURL(detail.ThumbnailURL, f.thumbnailCredential(ctx))

	return detail, nil
}

// Download returns the stored file contents. The caller closes the reader.
func (f *Files) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	path, err := filePath(id, "download")
	if err != nil {
		return nil, err
	}

	resp, err := f.api.Do(ctx, client.Request{
		Operation: "files.download",
		Method:    http.MethodGet,
		Path:      path,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", id, err)
	}

	if !client.IsSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		var answer envelope
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&answer)
		return nil, answer.failure(resp.StatusCode)
	}

	return resp.Body, nil
}

// Delete removes a file and returns the server's answer.
func (f *Files) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	path, err := filePath(id, "")
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	status, err := f.api.DoJSON(ctx, client.Request{
		Operation: "files.delete",
		Method:    http.MethodDelete,
		Path:      path,
	}, nil, &raw)
	if errors.Is(err, client.ErrEmptyBody) && client.IsSuccess(status) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	if err := decodeFailure(raw, status); err != nil {
		return raw, err
	}

	f.logger.Info("Files service: file deleted",
		"file_id", id)

	return raw, nil
}

// Export streams a file into object storage under key. An empty key uses the
// file id. An existing object is only replaced when overwrite is set.
func (f *Files) Export(ctx context.Context, id, key string, overwrite bool) error {
	if f.storage == nil {
		return ErrNoExportStorage
	}
	if key == "" {
		key = id
	}

	if !overwrite {
		exists, err := f.storage.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to check export %s: %w", key, err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrExportExists, key)
		}
	}

	body, err := f.Download(ctx, id)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := f.storage.Upload(ctx, key, body); err != nil {
		f.logger.Error("Files service: failed to export file",
			"file_id", id,
			"key", key,
			"error", err.Error())
		return fmt.Errorf("failed to export file %s: %w", id, err)
	}

	f.logger.Info("Files service: file exported",
		"file_id", id,
		"key", key)

	return nil
}

// RemoveExport deletes an exported object.
func (f *Files) RemoveExport(ctx context.Context, key string) error {
	if f.storage == nil {
		return ErrNoExportStorage
	}

	if err := f.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to remove export %s: %w", key, err)
	}

	f.logger.Info("Files service: export removed",
		"key", key)

	return nil
}

// Import uploads an exported object back to the server as name, which
// defaults to the last element of key.
func (f *Files) Import(ctx context.Context, key, name string) (json.RawMessage, error) {
	if f.storage == nil {
		return nil, ErrNoExportStorage
	}
	if name == "" {
		name = path.Base(key)
	}

	exists, err := f.storage.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check export %s: %w", key, err)
	}
	if !exists {
		return nil, fmt.Errorf("export %s: %w", key, model.ErrNotFound)
	}

	body, err := f.storage.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", key, err)
	}
	defer body.Close()

	return f.Upload(ctx, name, body)
}

// thumbnailCredential returns the credential to append to thumbnail URLs, if any.
func (f *Files) thumbnailCredential(ctx context.Context) string {
	if !f.thumbnailToken {
		return ""
	}
	credential, err := f.store.Load(ctx)
	if err != nil {
		return ""
	}
	return credential
}

// thumbnailURL turns a server-relative thumbnail path into an absolute URL.
func (f *Files) thumbnailURL(ref, credential string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}

	u := f.api.URL(thumbnailPrefix + ref)
	if credential == "" {
		return u
	}

	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "token=" + url.QueryEscape(credential)
}

func listQuery(q model.FileQuery) url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", q.SortOrder)
	}
	return v
}

func filePath(id, suffix string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileID, id)
	}

	p := pathFiles + "/" + url.PathEscape(id)
	if suffix != "" {
		p += "/" + suffix
	}
	return p, nil
}

// decodeFailure inspects a raw answer for a failure envelope.
func decodeFailure(raw json.RawMessage, status int) error {
	var answer envelope
	if err := json.Unmarshal(raw, &answer); err != nil && client.IsSuccess(status) {
		return nil
	}
	return answer.failure(status)
}

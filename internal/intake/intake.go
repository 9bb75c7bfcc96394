// Package intake turns files on disk into uploads: it fills in metadata the
// user left out and keeps a ledger so drop-folder files are uploaded once.
package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hyperjump/readora/internal/config"
	"github.com/hyperjump/readora/internal/extract"
	"github.com/hyperjump/readora/internal/fileid"
	"github.com/hyperjump/readora/internal/models"
)

// Uploader creates records on the backend.
type Uploader interface {
	CreateBook(ctx context.Context, in *models.UploadInput) (*models.BookRecord, error)
}

// Ledger remembers which files were uploaded.
type Ledger interface {
	LookupUpload(ctx context.Context, fileID string) (*models.UploadRecord, error)
	RecordUpload(ctx context.Context, rec *models.UploadRecord) error
}

// Options are the defaults applied to every prepared upload.
type Options struct {
	// Extensions limits uploadable files; empty allows any.
	Extensions      []string
	Language        string
	CopyrightStatus string
	// DescribeChars is the length of descriptions generated from file text; 0 disables them.
	DescribeChars int
	// Public marks drop-folder uploads as public-library books.
	Public bool
}

// OptionsFromConfig returns the upload defaults in cfg. Drop-folder settings
// come from the watch section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Extensions:      cfg.Upload.Extensions,
		Language:        cfg.Upload.DefaultLanguage,
		CopyrightStatus: cfg.Upload.DefaultCopyrightStatus,
		DescribeChars:   cfg.Upload.DescribeChars,
		Public:          cfg.Watch.Public,
	}
}

// Outcome is what HandleFile did with a file.
type Outcome string

const (
	Uploaded  Outcome = "uploaded"
	Unchanged Outcome = "unchanged"
	// Duplicate means the file changed on disk but its content did not.
	Duplicate Outcome = "duplicate"
)

// Intake prepares and uploads files.
type Intake struct {
	uploader  Uploader
	ledger    Ledger
	extractor *extract.Extractor
	opts      Options
	logger    *zap.Logger
	titler    cases.Caser
}

// Option configures an Intake.
type Option func(*Intake)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Intake) { i.logger = l }
}

// New creates an Intake. ledger may be nil when only Prepare and Upload are used.
func New(uploader Uploader, ledger Ledger, opts Options, options ...Option) *Intake {
	i := &Intake{
		uploader:  uploader,
		ledger:    ledger,
		extractor: extract.NewExtractor(extract.WithMaxPages(5)),
		opts:      opts,
		logger:    zap.NewNop(),
		titler:    cases.Title(language.English, cases.NoLower),
	}
	for _, o := range options {
		o(i)
	}
	return i
}

// Allowed reports whether path has an uploadable extension.
func (i *Intake) Allowed(path string) bool {
	if len(i.opts.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range i.opts.Extensions {
		if "."+strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// Upload prepares the file at path using meta for user-supplied fields and
// creates the record. meta may be nil.
func (i *Intake) Upload(ctx context.Context, path string, meta *models.UploadInput) (*models.BookRecord, error) {
	in, closeFile, err := i.Prepare(path, meta)
	if err != nil {
		return nil, err
	}
	defer closeFile()
	return i.uploader.CreateBook(ctx, in)
}

// Prepare opens the file at path and returns the create payload for it.
// Empty fields of meta are filled in: the title from the file name, the
// description from the file's text, language and copyright status from the
// options. The caller must call the returned close function.
func (i *Intake) Prepare(path string, meta *models.UploadInput) (*models.UploadInput, func(), error) {
	if !i.Allowed(path) {
		return nil, nil, &models.ValidationError{Field: "file",
			Message: fmt.Sprintf("%s: file type %q is not allowed", filepath.Base(path), filepath.Ext(path))}
	}
	in := &models.UploadInput{}
	if meta != nil {
		*in = *meta
	}
	if strings.TrimSpace(in.Title) == "" {
		in.Title = i.TitleFromFilename(path)
	}
	if in.Language == "" {
		in.Language = i.opts.Language
	}
	if in.CopyrightStatus == "" {
		in.CopyrightStatus = i.opts.CopyrightStatus
	}
	if in.Description == "" && i.opts.DescribeChars > 0 && extract.Supported(filepath.Ext(path)) {
		text, err := i.extractor.Extract(path)
		if err != nil {
			i.logger.Debug("no description from file text", zap.String("path", path), zap.Error(err))
		} else {
			in.Description = extract.Describe(text, i.opts.DescribeChars)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}
	in.FileName = filepath.Base(path)
	in.File = f
	if err := in.Validate(); err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return in, func() { _ = f.Close() }, nil
}

// TitleFromFilename derives a display title: extension dropped, separators
// turned into spaces, words capitalised.
func (i *Intake) TitleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	return i.titler.String(strings.Join(strings.Fields(base), " "))
}

// HandleFile uploads a drop-folder file unless the ledger shows it was
// already uploaded with the same size and modification time, or the same content.
func (i *Intake) HandleFile(ctx context.Context, path string) (Outcome, *models.BookRecord, error) {
	if i.ledger == nil {
		return "", nil, errors.New("intake has no ledger")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, err
	}
	id := fileid.FileDocID(path)
	prev, err := i.ledger.LookupUpload(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return "", nil, fmt.Errorf("lookup ledger: %w", err)
	}
	if prev != nil && prev.Unchanged(info.Size(), info.ModTime()) {
		return Unchanged, nil, nil
	}

	digest, err := fileid.ContentDigest(path)
	if err != nil {
		return "", nil, err
	}
	if prev != nil && prev.Digest == digest {
		prev.Size, prev.ModTime = info.Size(), info.ModTime()
		if err := i.ledger.RecordUpload(ctx, prev); err != nil {
			return "", nil, fmt.Errorf("update ledger: %w", err)
		}
		return Duplicate, nil, nil
	}

	book, err := i.Upload(ctx, path, &models.UploadInput{IsPublic: i.opts.Public})
	if err != nil {
		return "", nil, err
	}
	rec := &models.UploadRecord{
		FileID:  id,
		Path:    path,
		BookID:  book.ID,
		Digest:  digest,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := i.ledger.RecordUpload(ctx, rec); err != nil {
		// the upload happened; a missing ledger entry only means a later re-upload
		i.logger.Warn("failed to record upload", zap.String("path", path), zap.Error(err))
	}
	i.logger.Info("uploaded", zap.String("path", path), zap.String("id", book.ID.String()), zap.String("title", book.Title))
	return Uploaded, book, nil
}

// Package ingest acquires the merchant listings report and extracts the
// candidate ASINs from it.
package ingest

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/japanese"

	"github.com/guarzo/janprice/internal/config"
	"github.com/guarzo/janprice/internal/faults"
	"github.com/guarzo/janprice/internal/model"
	"github.com/guarzo/janprice/internal/spapi"
)

const (
	chunkSize = 32 * 1024

	// Listing rows qualify when their trailing fields read shippingTier, status.
	activeStatus = "Active"
	freeShipping = "送料無料(お急ぎ便無し)"
)

// Step names a stage of the ingestion state machine.
type Step string

const (
	StepRequestReport  Step = "request report"
	StepLocateDocument Step = "locate document"
	StepDownload       Step = "download"
	StepDecompress     Step = "decompress"
	StepExtract        Step = "extract"
)

// ReportAPI is the part of the Selling Partner client ingestion needs.
type ReportAPI interface {
	LatestReportDocumentID(ctx context.Context, token, reportType string) (string, error)
	ReportDocument(ctx context.Context, token, documentID string) (*spapi.ReportDocument, error)
}

// TokenSource issues access tokens.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Extraction is the result of reading a listings report.
type Extraction struct {
	Path       string
	Candidates []model.Candidate
	Total      int
}

type Options struct {
	WorkDir    string
	Encoding   string // config.EncodingUTF8 or config.EncodingShiftJIS
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Service runs RequestReport, LocateDocument, Download, Decompress and
// ExtractCandidates in order. Every failure is a faults.Report error.
type Service struct {
	api      ReportAPI
	tokens   TokenSource
	workDir  string
	encoding string
	client   *http.Client
	logger   *zap.Logger
}

func NewService(api ReportAPI, tokens TokenSource, opts Options) *Service {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	encoding := opts.Encoding
	if encoding == "" {
		encoding = config.EncodingUTF8
	}
	return &Service{
		api:      api,
		tokens:   tokens,
		workDir:  opts.WorkDir,
		encoding: encoding,
		client:   client,
		logger:   logger,
	}
}

// Run fetches a fresh token and drives the whole state machine.
func (s *Service) Run(ctx context.Context) (*Extraction, error) {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	id, err := s.RequestReport(ctx, token)
	if err != nil {
		return nil, err
	}
	doc, err := s.LocateDocument(ctx, id, token)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return nil, reportError(StepDownload, "ファイルをダウロドしていた途中にエラーが発生しました。", err)
	}
	name := safeName(id)
	gzPath := filepath.Join(s.workDir, name+".gz")
	txtPath := filepath.Join(s.workDir, name)

	if err := s.Download(ctx, doc.URL, gzPath); err != nil {
		return nil, err
	}
	if doc.Gzipped() {
		if err := s.Decompress(gzPath, txtPath); err != nil {
			return nil, err
		}
	} else if err := os.Rename(gzPath, txtPath); err != nil {
		return nil, reportError(StepDecompress, "ファイルを展開できませんでした。", err)
	}

	ex, err := s.ExtractCandidates(txtPath)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ingest: report extracted",
		zap.String("document", id),
		zap.String("path", txtPath),
		zap.Int("total", ex.Total))
	return ex, nil
}

// RequestReport returns the document id of the latest listings report.
func (s *Service) RequestReport(ctx context.Context, token string) (string, error) {
	id, err := s.api.LatestReportDocumentID(ctx, token, spapi.MerchantListingsReport)
	if err != nil {
		return "", reportError(StepRequestReport, "report document idを取得できません。", err)
	}
	return id, nil
}

// LocateDocument resolves a document id to its download URL.
func (s *Service) LocateDocument(ctx context.Context, id, token string) (*spapi.ReportDocument, error) {
	doc, err := s.api.ReportDocument(ctx, token, id)
	if err != nil {
		return nil, reportError(StepLocateDocument, "リストファイルのパスを取得できません。", err)
	}
	return doc, nil
}

// Download streams url to dest in fixed-size chunks.
func (s *Service) Download(ctx context.Context, url, dest string) error {
	const msg = "ファイルをダウロドしていた途中にエラーが発生しました。"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return reportError(StepDownload, msg, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return reportError(StepDownload, msg, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return reportError(StepDownload, msg, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	f, err := os.Create(dest)
	if err != nil {
		return reportError(StepDownload, msg, err)
	}

	written, err := copyChunks(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return reportError(StepDownload, msg, err)
	}

	s.logger.Debug("ingest: downloaded", zap.String("dest", dest), zap.Int64("bytes", written))
	return nil
}

func copyChunks(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// Decompress gunzips src into dest and removes src on success.
func (s *Service) Decompress(src, dest string) error {
	if err := gunzip(src, dest); err != nil {
		_ = os.Remove(dest)
		if errors.Is(err, fs.ErrPermission) {
			return reportError(StepDecompress, fmt.Sprintf("ファイルへのアクセス権限がありません: %v", err), err)
		}
		return reportError(StepDecompress, fmt.Sprintf("ファイルの展開中にエラーが発生しました: %v", err), err)
	}
	if err := os.Remove(src); err != nil {
		s.logger.Warn("ingest: could not remove archive", zap.String("path", src), zap.Error(err))
	}
	return nil
}

func gunzip(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer zr.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := copyChunks(out, zr); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ExtractCandidates reads a tab-separated listings file. The header line is
// skipped; a row qualifies when its last field is Active and the one before
// it is the free-shipping tier. The candidate ASIN is the second field.
func (s *Service) ExtractCandidates(path string) (*Extraction, error) {
	const msg = "無効なファイルです"

	f, err := os.Open(path)
	if err != nil {
		return nil, reportError(StepExtract, msg, err)
	}
	defer f.Close()

	var r io.Reader = f
	if s.encoding == config.EncodingShiftJIS {
		r = japanese.ShiftJIS.NewDecoder().Reader(f)
	}

	ex, err := ParseListings(r)
	if err != nil {
		return nil, reportError(StepExtract, msg, err)
	}
	ex.Path = path
	return ex, nil
}

// ParseListings applies the qualifying-row rule to a decoded report stream.
func ParseListings(r io.Reader) (*Extraction, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	ex := &Extraction{}
	for line := 0; sc.Scan(); line++ {
		if line == 0 {
			continue
		}
		if c, ok := qualify(sc.Text()); ok {
			ex.Candidates = append(ex.Candidates, c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	ex.Total = len(ex.Candidates)
	return ex, nil
}

func qualify(line string) (model.Candidate, bool) {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, ','); i >= 0 {
		line = line[:i]
	}
	fields := strings.Split(line, "\t")
	n := len(fields)
	if n < 2 || fields[n-1] != activeStatus || fields[n-2] != freeShipping {
		return "", false
	}
	return model.Candidate(fields[1]), true
}

func reportError(step Step, msg string, err error) error {
	return faults.WithMessage(faults.Report, string(step), msg, err)
}

func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, id)
}

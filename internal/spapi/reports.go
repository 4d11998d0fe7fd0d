package spapi

import (
	"context"
	"errors"
	"net/url"
)

const (
	reportsPath = "/reports/2021-06-30/reports"
	// MerchantListingsReport is the bulk listings report the ingestion reads.
	MerchantListingsReport = "GET_MERCHANT_LISTINGS_ALL_DATA"
)

// ErrNoReport is returned when the report listing is empty.
var ErrNoReport = errors.New("no report available")

// ReportDocument locates a generated report file.
type ReportDocument struct {
	ReportDocumentID     string `json:"reportDocumentId"`
	URL                  string `json:"url"`
	CompressionAlgorithm string `json:"compressionAlgorithm,omitempty"`
}

// Gzipped reports whether the document must be decompressed.
func (d ReportDocument) Gzipped() bool {
	return d.CompressionAlgorithm == "" || d.CompressionAlgorithm == "GZIP"
}

// LatestReportDocumentID returns the document id of the most recent report
// of the given type.
func (c *Client) LatestReportDocumentID(ctx context.Context, token, reportType string) (string, error) {
	var out struct {
		Reports []struct {
			ReportID         string `json:"reportId"`
			ReportDocumentID string `json:"reportDocumentId"`
			ProcessingStatus string `json:"processingStatus"`
		} `json:"reports"`
	}

	q := url.Values{}
	q.Set("reportTypes", reportType)
	if err := c.getJSON(ctx, c.limits.Reports, token, reportsPath, q, &out); err != nil {
		return "", err
	}
	if len(out.Reports) == 0 || out.Reports[0].ReportDocumentID == "" {
		return "", ErrNoReport
	}
	return out.Reports[0].ReportDocumentID, nil
}

// ReportDocument resolves a document id to its download location.
func (c *Client) ReportDocument(ctx context.Context, token, documentID string) (*ReportDocument, error) {
	var doc ReportDocument
	path := "/reports/2021-06-30/documents/" + url.PathEscape(documentID)
	if err := c.getJSON(ctx, c.limits.Documents, token, path, nil, &doc); err != nil {
		return nil, err
	}
	if doc.URL == "" {
		return nil, errors.New("report document has no url")
	}
	return &doc, nil
}

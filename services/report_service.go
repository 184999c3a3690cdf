package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anjiri1684/psych_admin/views"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

const reportFolder = "psych_admin_reports"

// PDFPrinter turns a complete HTML document into PDF bytes.
type PDFPrinter func(ctx context.Context, html string) ([]byte, error)

// Uploader stores a generated report and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, name string) (string, error)
}

type Report struct {
	FileName string
	PDF      []byte
	// URL is set when the report was uploaded; PDF is then still available.
	URL string
}

type ReportService struct {
	dashboard  *DashboardService
	printPDF   PDFPrinter
	uploader   Uploader
	dateLayout string
	now        func() time.Time
}

// NewReportService builds the results report pipeline. uploader may be nil,
// in which case reports are only returned to the caller.
func NewReportService(dashboard *DashboardService, printPDF PDFPrinter, uploader Uploader, dateLayout string) *ReportService {
	if printPDF == nil {
		printPDF = ChromePDF
	}
	return &ReportService{dashboard: dashboard, printPDF: printPDF, uploader: uploader, dateLayout: dateLayout, now: time.Now}
}

func (s *ReportService) ResultsReport(ctx context.Context) (*Report, error) {
	results, err := s.dashboard.Results(ctx)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now()
	html, err := views.RenderResultsReport(views.ReportData{
		Title:       "Test results report",
		GeneratedAt: generatedAt,
		Results:     results,
		DateLayout:  s.dateLayout,
	})
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	pdf, err := s.printPDF(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("print report: %w", err)
	}

	report := &Report{
		FileName: fmt.Sprintf("results_%s.pdf", generatedAt.Format("20060102_150405")),
		PDF:      pdf,
	}
	if s.uploader != nil {
		url, err := s.uploader.Upload(ctx, pdf, report.FileName)
		if err != nil {
			log.Printf("🔥 Failed to upload results report, serving it directly: %v", err)
		} else {
			report.URL = url
			log.Printf("✅ Uploaded results report %s", report.FileName)
		}
	}
	return report, nil
}

// ChromePDF prints html with a headless Chrome instance.
func ChromePDF(ctx context.Context, htmlContent string) ([]byte, error) {
	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).WithLandscape(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryUploader(cloudinaryURL string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &CloudinaryUploader{cld: cld}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, data []byte, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := u.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     fmt.Sprintf("%s_%s", name, uuid.New().String()),
		Folder:       reportFolder,
		ResourceType: "raw",
	})
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}

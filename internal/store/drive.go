// Package store provides document storage backends for rendered invoices.
// Both backends implement invoice.DocumentStore: Google Drive for the
// hosted setup and an S3-compatible bucket for self-hosted archives.
package store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"invoicer/internal/logger"
)

const invoicesFolderName = "Invoices"

// DriveStore uploads invoice PDFs to Google Drive under
// Invoices/<client key>/, creating the folders on demand. The reference it
// returns is the shareable view URL, which is what gets written into the
// ledger's link column.
type DriveStore struct {
	driveService *drive.Service
	parentID     string
	log          zerolog.Logger
}

// NewDriveStore creates a Drive-backed document store. parentID is the
// optional Drive folder the Invoices folder lives under; empty means the
// service account's root.
func NewDriveStore(ctx context.Context, parentID string) (*DriveStore, error) {
	const op = "NewDriveStore"

	creds, err := readCredentials()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	config, err := google.JWTConfigFromJSON(creds, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	driveService, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create drive service: %w", op, err)
	}

	return &DriveStore{
		driveService: driveService,
		parentID:     parentID,
		log:          logger.WithComponent("drive"),
	}, nil
}

func readCredentials() ([]byte, error) {
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return creds, nil
	}
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		return []byte(credsJSON), nil
	}
	return nil, fmt.Errorf("neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set")
}

// Store uploads the document into the client's folder and returns the
// Drive view link.
func (s *DriveStore) Store(ctx context.Context, data []byte, name, clientKey string) (string, error) {
	const op = "Store"

	invoicesID, err := s.ensureFolder(ctx, invoicesFolderName, s.parentID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	clientFolderID := invoicesID
	if clientKey != "" {
		clientFolderID, err = s.ensureFolder(ctx, clientKey, invoicesID)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	file := &drive.File{
		Name:     name,
		MimeType: "application/pdf",
		Parents:  []string{clientFolderID},
	}
	created, err := s.driveService.Files.Create(file).
		Media(bytes.NewReader(data)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("%s: failed to upload %s: %w", op, name, err)
	}

	ref := "https://drive.google.com/file/d/" + created.Id + "/view"

	s.log.Info().
		Str("file", name).
		Str("folder", clientKey).
		Str("ref", ref).
		Msg("Document uploaded to Drive")

	return ref, nil
}

// Delete removes a previously stored document, given its view link.
func (s *DriveStore) Delete(ctx context.Context, ref string) error {
	const op = "Delete"

	fileID, err := fileIDFromRef(ref)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.driveService.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to delete file %s: %w", op, fileID, err)
	}

	s.log.Info().Str("file_id", fileID).Msg("Document deleted from Drive")
	return nil
}

// ensureFolder finds a folder by name under the parent, creating it when
// missing. Check-then-create is not atomic; a lost race leaves a duplicate
// folder, which Drive tolerates and later lookups resolve to the first hit.
func (s *DriveStore) ensureFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false",
		strings.ReplaceAll(name, "'", `\'`))
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	list, err := s.driveService.Files.List().Q(query).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to search for folder %s: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	s.log.Info().Str("folder", name).Msg("Creating Drive folder")

	folder := &drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.folder",
	}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	created, err := s.driveService.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", name, err)
	}
	return created.Id, nil
}

var fileRefPattern = regexp.MustCompile(`/file/d/([a-zA-Z0-9-_]+)`)

func fileIDFromRef(ref string) (string, error) {
	if matches := fileRefPattern.FindStringSubmatch(ref); len(matches) >= 2 {
		return matches[1], nil
	}
	return "", fmt.Errorf("not a Drive file reference: %s", ref)
}

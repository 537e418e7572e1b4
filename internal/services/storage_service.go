// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/licenseforge/royalty-backend/internal/config"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

// StorageService stores the documents the ledger references by URL: license
// terms, royalty reports and modification attachments. The ledger itself only
// ever records the resulting URL.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Checksum string `json:"checksum"` // sha-256 of the stored content, hex
}

type UploadOptions struct {
	Folder       string
	MaxSize      int64 // in bytes
	AllowedTypes []string
	IsPublic     bool
	Checksum     string // optional client-declared sha-256, hex
}

func NewStorageService(config *config.Config) (*StorageService, error) {
	if config.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &StorageService{config: config}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   config,
	}, nil
}

func (s *StorageService) UploadFile(file multipart.File, header *multipart.FileHeader, options UploadOptions) (*UploadResult, error) {
	if options.MaxSize > 0 && header.Size > options.MaxSize {
		return nil, fmt.Errorf("file size %d bytes exceeds maximum allowed size %d bytes", header.Size, options.MaxSize)
	}

	if len(options.AllowedTypes) > 0 {
		fileExt := strings.ToLower(filepath.Ext(header.Filename))
		allowed := false
		for _, allowedType := range options.AllowedTypes {
			if fileExt == allowedType {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("file type %s is not allowed", fileExt)
		}
	}

	filename, err := s.generateFileName(header.Filename, options.Folder)
	if err != nil {
		return nil, fmt.Errorf("failed to generate file name: %w", err)
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if options.Checksum != "" && !utils.ValidateFileHash(fileBytes, strings.ToLower(options.Checksum)) {
		return nil, fmt.Errorf("file content does not match declared checksum")
	}

	var result *UploadResult
	if s.s3Client != nil {
		result, err = s.uploadToS3(fileBytes, filename, header.Header.Get("Content-Type"), options.IsPublic)
	} else {
		result, err = s.uploadToLocal(fileBytes, filename, header.Header.Get("Content-Type"))
	}
	if err != nil {
		return nil, err
	}

	result.Checksum = utils.HashString(string(fileBytes))
	return result, nil
}

func (s *StorageService) uploadToS3(fileBytes []byte, key, contentType string, isPublic bool) (*UploadResult, error) {
	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileBytes))),
	}

	if isPublic {
		params.ACL = aws.String("public-read")
	}

	_, err := s.s3Client.PutObject(params)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL:      s.getS3URL(key),
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) uploadToLocal(fileBytes []byte, filename, contentType string) (*UploadResult, error) {
	// Local development fallback, no persistence.
	url := fmt.Sprintf("http://localhost:8080/uploads/%s", filename)

	return &UploadResult{
		URL:      url,
		Key:      filename,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) DeleteFile(key string) error {
	if s.s3Client == nil {
		return nil
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// GeneratePresignedURL grants time-limited access to a private document,
// e.g. a royalty report an admin reviews before approval.
func (s *StorageService) GeneratePresignedURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return "", fmt.Errorf("S3 client not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

func (s *StorageService) GetDefaultUploadOptions(category string) UploadOptions {
	switch category {
	case "royalty_reports":
		return UploadOptions{
			Folder:       "royalty-reports",
			MaxSize:      25 * 1024 * 1024, // 25MB
			AllowedTypes: []string{".pdf", ".csv", ".xlsx", ".json"},
			IsPublic:     false,
		}
	case "license_terms":
		return UploadOptions{
			Folder:       "license-terms",
			MaxSize:      10 * 1024 * 1024, // 10MB
			AllowedTypes: []string{".pdf", ".txt", ".md", ".json"},
			IsPublic:     true,
		}
	case "modifications":
		return UploadOptions{
			Folder:       "modifications",
			MaxSize:      10 * 1024 * 1024, // 10MB
			AllowedTypes: []string{".pdf", ".txt", ".json"},
			IsPublic:     false,
		}
	default:
		return UploadOptions{
			Folder:       "general",
			MaxSize:      5 * 1024 * 1024, // 5MB
			AllowedTypes: []string{".pdf", ".txt", ".json"},
			IsPublic:     false,
		}
	}
}

func (s *StorageService) generateFileName(originalName, folder string) (string, error) {
	suffix, err := utils.GenerateRandomString(12)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(originalName)

	timestamp := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s_%s%s", timestamp, suffix, ext)

	if folder != "" {
		return fmt.Sprintf("%s/%s", folder, filename), nil
	}
	return filename, nil
}

func (s *StorageService) getS3URL(key string) string {
	if s.config.AWS.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", s.config.AWS.CloudFrontURL, key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.config.AWS.S3Bucket, s.config.AWS.Region, key)
}

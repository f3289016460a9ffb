package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"docuquery/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn required")
	}
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return newGormStore(db)
}

func newGormStore(db *gorm.DB) (*GormStore, error) {
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &DocumentModel{}, &IngestionModel{}, &MessageModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

const migrateLockID int64 = 7340032001

// withMigrationLock serializes migrations across replicas sharing one database.
func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// GetUser returns a user by ID.
func (s *GormStore) GetUser(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by normalized email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", normalizeEmail(email)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return saveUserTx(tx, u)
	})
}

func saveUserTx(tx *gorm.DB, u domain.User) error {
	var count int64
	if err := tx.Model(&UserModel{}).Where("email = ? AND id <> ?", normalizeEmail(u.Email), u.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateEmail
	}
	model := userToModel(u)
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role", "status", "last_login"}),
	}).Create(&model).Error
}

// UpdateUser locks the row, applies fn and writes it back.
func (s *GormStore) UpdateUser(id string, fn func(*domain.User) error) (domain.User, error) {
	var out domain.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model UserModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		u := userFromModel(model)
		if err := fn(&u); err != nil {
			return err
		}
		u.ID = id
		if err := saveUserTx(tx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	return out, err
}

// DeleteUser removes a user and its history.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&UserModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&MessageModel{}, "user_id = ?", id).Error
	})
}

// ListDocuments returns documents ordered by created_at.
func (s *GormStore) ListDocuments() ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// GetDocument retrieves a document.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// SaveDocument stores or updates a document.
func (s *GormStore) SaveDocument(d domain.Document) error {
	model := documentToModel(d)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "type", "size", "size_bytes", "uploaded_by", "upload_date", "status", "storage_key"}),
	}).Create(&model).Error
}

func (s *GormStore) UpdateDocument(id string, fn func(*domain.Document) error) (domain.Document, error) {
	var out domain.Document
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model DocumentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		d := documentFromModel(model)
		if err := fn(&d); err != nil {
			return err
		}
		d.ID = id
		updated := documentToModel(d)
		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

// DeleteDocument removes one document.
func (s *GormStore) DeleteDocument(id string) error {
	res := s.db.Delete(&DocumentModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIngestions returns ingestions ordered by start time.
func (s *GormStore) ListIngestions() ([]domain.Ingestion, error) {
	var models []IngestionModel
	if err := s.db.Order("start_time ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Ingestion, 0, len(models))
	for _, m := range models {
		res = append(res, ingestionFromModel(m))
	}
	return res, nil
}

func (s *GormStore) GetIngestion(id string) (domain.Ingestion, bool, error) {
	var model IngestionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Ingestion{}, false, nil
		}
		return domain.Ingestion{}, false, err
	}
	return ingestionFromModel(model), true, nil
}

func (s *GormStore) SaveIngestion(ing domain.Ingestion) error {
	model := ingestionToModel(ing)
	return s.db.Save(&model).Error
}

func (s *GormStore) UpdateIngestion(id string, fn func(*domain.Ingestion) error) (domain.Ingestion, error) {
	var out domain.Ingestion
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model IngestionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		ing := ingestionFromModel(model)
		if err := fn(&ing); err != nil {
			return err
		}
		ing.ID = id
		updated := ingestionToModel(ing)
		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		out = ing
		return nil
	})
	return out, err
}

func (s *GormStore) DeleteIngestion(id string) error {
	res := s.db.Delete(&IngestionModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage records a history entry.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.Create(&model).Error
}

// ListMessages returns the newest limit messages of a user in chronological order.
func (s *GormStore) ListMessages(userID string, limit int) ([]domain.Message, error) {
	var models []MessageModel
	q := s.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, len(models))
	for i, m := range models {
		res[len(models)-1-i] = messageFromModel(m)
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        normalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		LastLogin:    u.LastLogin,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		Status:       domain.UserStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		LastLogin:    m.LastLogin,
	}
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:         d.ID,
		Title:      d.Title,
		Type:       d.Type,
		Size:       d.Size,
		SizeBytes:  d.SizeBytes,
		UploadedBy: d.UploadedBy,
		UploadDate: d.UploadDate,
		Status:     string(d.Status),
		StorageKey: d.StorageKey,
		CreatedAt:  d.CreatedAt,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:         m.ID,
		Title:      m.Title,
		Type:       m.Type,
		Size:       m.Size,
		SizeBytes:  m.SizeBytes,
		UploadedBy: m.UploadedBy,
		UploadDate: m.UploadDate,
		Status:     domain.DocumentStatus(m.Status),
		StorageKey: m.StorageKey,
		CreatedAt:  m.CreatedAt,
	}
}

func ingestionToModel(ing domain.Ingestion) IngestionModel {
	return IngestionModel{
		ID:             ing.ID,
		DocumentID:     ing.DocumentID,
		DocumentTitle:  ing.DocumentTitle,
		Status:         string(ing.Status),
		StartTime:      ing.StartTime,
		EndTime:        ing.EndTime,
		ProcessedPages: ing.ProcessedPages,
		TotalPages:     ing.TotalPages,
		Error:          ing.Error,
	}
}

func ingestionFromModel(m IngestionModel) domain.Ingestion {
	return domain.Ingestion{
		ID:             m.ID,
		DocumentID:     m.DocumentID,
		DocumentTitle:  m.DocumentTitle,
		Status:         domain.IngestionStatus(m.Status),
		StartTime:      m.StartTime,
		EndTime:        m.EndTime,
		ProcessedPages: m.ProcessedPages,
		TotalPages:     m.TotalPages,
		Error:          m.Error,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	rawSources, _ := json.Marshal(msg.Sources)
	return MessageModel{
		ID:        msg.ID,
		UserID:    msg.UserID,
		Role:      msg.Role,
		Content:   msg.Content,
		Sources:   datatypes.JSON(rawSources),
		CreatedAt: msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	var sources []domain.Source
	if len(m.Sources) > 0 {
		_ = json.Unmarshal(m.Sources, &sources)
	}
	return domain.Message{
		ID:        m.ID,
		UserID:    m.UserID,
		Role:      m.Role,
		Content:   m.Content,
		Sources:   sources,
		CreatedAt: m.CreatedAt,
	}
}

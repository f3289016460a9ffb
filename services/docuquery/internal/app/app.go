package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"docuquery/pkg/domain"
	"docuquery/pkg/service"
	"docuquery/pkg/session"
	"docuquery/pkg/storage"
	"docuquery/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	JWTSecret     string
	SessionTTL    time.Duration
	DataDir       string
	Seed          bool

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	Services service.Config

	// Optional overrides, mainly for tests.
	Store     store.Store
	Objects   storage.ObjectStore
	Redis     *redis.Client
	Directory *session.Directory
}

// App wires the repositories, mock services and per-client sessions.
type App struct {
	svc       *service.Services
	store     store.Store
	directory *session.Directory
	tokens    *session.TokenIssuer
	redis     *redis.Client
	ownRedis  bool

	sessionTTL time.Duration
	mu         sync.Mutex
	slots      map[string]*session.MemorySlot
}

// New constructs the application. Without databaseURL the in-memory store is used;
// without redisAddr sessions live in process memory.
func New(cfg Config) (*App, error) {
	tokens, err := session.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL != "" {
			dataStore, err = store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("init postgres store: %w", err)
			}
		} else {
			dataStore = store.NewMemoryStore()
		}
	}
	if cfg.Seed {
		if err := seedIfEmpty(dataStore); err != nil {
			return nil, err
		}
	}

	objects := cfg.Objects
	if objects == nil {
		switch {
		case cfg.MinioEndpoint != "":
			objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
			if err != nil {
				return nil, fmt.Errorf("init object store: %w", err)
			}
		case cfg.DataDir != "":
			objects, err = storage.NewFileStore(cfg.DataDir)
			if err != nil {
				return nil, fmt.Errorf("init object store: %w", err)
			}
		}
	}

	client := cfg.Redis
	ownRedis := false
	if client == nil && strings.TrimSpace(cfg.RedisAddr) != "" {
		client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		ownRedis = true
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	directory := cfg.Directory
	if directory == nil {
		directory = session.NewDirectory()
	}

	return &App{
		svc:        service.New(dataStore, objects, cfg.Services),
		store:      dataStore,
		directory:  directory,
		tokens:     tokens,
		redis:      client,
		ownRedis:   ownRedis,
		sessionTTL: cfg.SessionTTL,
		slots:      make(map[string]*session.MemorySlot),
	}, nil
}

func seedIfEmpty(s store.Store) error {
	docs, err := s.ListDocuments()
	if err != nil {
		return fmt.Errorf("check seed: %w", err)
	}
	if len(docs) > 0 {
		return nil
	}
	if err := store.Seed(s, time.Now()); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	return nil
}

// Start runs the ingestion simulator until ctx ends or Close is called.
func (a *App) Start(ctx context.Context) {
	a.svc.Simulator.Start(ctx)
}

// Close stops background work and releases connections.
func (a *App) Close() error {
	a.svc.Simulator.Stop()
	if a.ownRedis && a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

func (a *App) Documents() *service.DocumentService { return a.svc.Documents }
func (a *App) Ingestions() *service.IngestionService { return a.svc.Ingestions }
func (a *App) Users() *service.UserService { return a.svc.Users }
func (a *App) QA() *service.QAService { return a.svc.QA }
func (a *App) Dashboard() *service.DashboardService { return a.svc.Dashboard }

// Simulator exposes the ingestion clock.
func (a *App) Simulator() *service.Simulator { return a.svc.Simulator }

// Ping checks the session backend.
func (a *App) Ping(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Ping(ctx).Err()
}

// NewClient allocates a session slot and returns its id with a bearer token.
func (a *App) NewClient() (clientID, token string, err error) {
	clientID = session.NewClientID()
	token, err = a.tokens.Issue(clientID)
	if err != nil {
		return "", "", fmt.Errorf("issue token: %w", err)
	}
	return clientID, token, nil
}

// ClientFromToken validates a bearer token and returns its slot id.
func (a *App) ClientFromToken(token string) (string, error) {
	return a.tokens.ClientID(token)
}

// Session restores the session store of a client from its slot.
func (a *App) Session(ctx context.Context, clientID string) (*session.Store, error) {
	return session.NewStore(ctx, a.slot(clientID), a.directory)
}

// SessionWithSlot builds a session store over a caller-owned slot.
func (a *App) SessionWithSlot(ctx context.Context, slot session.Slot) (*session.Store, error) {
	return session.NewStore(ctx, slot, a.directory)
}

func (a *App) slot(clientID string) session.Slot {
	if a.redis != nil {
		return session.NewRedisSlot(a.redis, clientID, a.sessionTTL)
	}
	return &clientSlot{app: a, id: clientID}
}

// clientSlot is an in-memory slot that only occupies the map while it holds
// a session. Reads of unknown clients allocate nothing.
type clientSlot struct {
	app *App
	id  string
}

func (c *clientSlot) Load(ctx context.Context) ([]byte, bool, error) {
	c.app.mu.Lock()
	s := c.app.slots[c.id]
	c.app.mu.Unlock()
	if s == nil {
		return nil, false, nil
	}
	return s.Load(ctx)
}

func (c *clientSlot) Save(ctx context.Context, data []byte) error {
	c.app.mu.Lock()
	s, ok := c.app.slots[c.id]
	if !ok {
		s = session.NewMemorySlot()
		c.app.slots[c.id] = s
	}
	c.app.mu.Unlock()
	return s.Save(ctx, data)
}

func (c *clientSlot) Clear(ctx context.Context) error {
	c.app.ForgetClient(c.id)
	return nil
}

func (a *App) memorySlots() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots)
}

// RecordLogin stamps lastLogin on the admin record sharing the identity's email.
func (a *App) RecordLogin(id domain.Identity) {
	if err := a.svc.Users.Touch(id.Email); err != nil {
		slog.Warn("record login failed", "email", id.Email, "err", err)
	}
}

// ForgetClient drops an in-memory slot after logout.
func (a *App) ForgetClient(clientID string) {
	if a.redis != nil {
		return
	}
	a.mu.Lock()
	delete(a.slots, clientID)
	a.mu.Unlock()
}

// Identity resolves the authenticated identity behind a bearer token.
func (a *App) Identity(ctx context.Context, token string) (domain.Identity, string, error) {
	clientID, err := a.ClientFromToken(token)
	if err != nil {
		return domain.Identity{}, "", err
	}
	sess, err := a.Session(ctx, clientID)
	if err != nil {
		return domain.Identity{}, "", err
	}
	id, ok := sess.Current()
	if !ok {
		return domain.Identity{}, "", ErrNoSession
	}
	return id, clientID, nil
}

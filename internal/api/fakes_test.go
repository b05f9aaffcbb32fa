package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hkaraki/herfa/internal/auth"
	"github.com/hkaraki/herfa/internal/middleware"
	"github.com/hkaraki/herfa/internal/models"
	"github.com/hkaraki/herfa/internal/repository"
)

const testSecret = "test-secret"

// memStore backs the four repository fakes with one in-memory data set.
// It mirrors the semantics the pgx stores get from the schema: unique
// fullname, unique relationship pair, canonical unique conversation pair,
// clamped unread counters.
type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	rels      map[uuid.UUID]*models.Relationship
	convs     map[uuid.UUID]*models.Conversation
	msgs      []*models.Message
	nextMsgID int64
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[uuid.UUID]*models.User),
		rels:  make(map[uuid.UUID]*models.Relationship),
		convs: make(map[uuid.UUID]*models.Conversation),
	}
}

// The repository interfaces reuse method names with different signatures
// (Create, MarkRead), so each interface gets its own view over the store.
type memUsers struct{ s *memStore }
type memRels struct{ s *memStore }
type memConvs struct{ s *memStore }
type memMsgs struct{ s *memStore }

var _ repository.UserRepository = memUsers{}
var _ repository.RelationshipRepository = memRels{}
var _ repository.ConversationRepository = memConvs{}
var _ repository.MessageRepository = memMsgs{}

func (v memUsers) Create(ctx context.Context, u *models.User) error {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Fullname == u.Fullname {
			return repository.ErrDuplicate
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (v memUsers) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (v memUsers) GetByFullname(ctx context.Context, fullname string) (*models.User, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Fullname == fullname {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (v memUsers) ListSpecialists(ctx context.Context, f repository.SpecialistFilter) ([]models.PublicUser, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PublicUser, 0)
	for _, u := range s.users {
		if u.Role != models.RoleSpecialist {
			continue
		}
		if f.Governorate != "" && u.Governorate != f.Governorate {
			continue
		}
		if f.District != "" && u.District != f.District {
			continue
		}
		if f.Specialty != "" && u.Specialist.Specialty != f.Specialty {
			continue
		}
		if f.IsAvailable != nil && u.Specialist.IsAvailable != *f.IsAvailable {
			continue
		}
		out = append(out, u.Public())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fullname < out[j].Fullname })
	return out, nil
}

func (v memUsers) ListClients(ctx context.Context, f repository.ClientFilter) ([]models.PublicUser, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PublicUser, 0)
	for _, u := range s.users {
		if u.Role != models.RoleClient {
			continue
		}
		if f.Governorate != "" && u.Governorate != f.Governorate {
			continue
		}
		if f.District != "" && u.District != f.District {
			continue
		}
		if f.WantsSpecialty != "" {
			wants := false
			for _, entry := range u.Client.NeededSpecialists {
				if entry.Name == f.WantsSpecialty && entry.IsNeeded {
					wants = true
					break
				}
			}
			if !wants {
				continue
			}
		}
		out = append(out, u.Public())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fullname < out[j].Fullname })
	return out, nil
}

func (v memUsers) UpdateAvailability(ctx context.Context, userID uuid.UUID, isAvailable bool) (bool, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.Specialist == nil {
		return false, nil
	}
	u.Specialist.IsAvailable = isAvailable
	return true, nil
}

func (v memUsers) UpdateNeededSpecialists(ctx context.Context, userID uuid.UUID, list []models.NeededSpecialist) (bool, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.Client == nil {
		return false, nil
	}
	u.Client.NeededSpecialists = list
	return true, nil
}

func (v memRels) Create(ctx context.Context, clientID, specialistID uuid.UUID) (*models.Relationship, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rels {
		if r.ClientID == clientID && r.SpecialistID == specialistID {
			return nil, repository.ErrDuplicate
		}
	}
	r := &models.Relationship{
		ID:           uuid.New(),
		ClientID:     clientID,
		SpecialistID: specialistID,
		DateAdded:    time.Now(),
	}
	s.rels[r.ID] = r
	copied := *r
	return &copied, nil
}

func owns(r *models.Relationship, owner uuid.UUID, side models.Role) bool {
	if side == models.RoleSpecialist {
		return r.SpecialistID == owner
	}
	return r.ClientID == owner
}

func (v memRels) Delete(ctx context.Context, relationshipID, owner uuid.UUID, side models.Role) (bool, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rels[relationshipID]
	if !ok || !owns(r, owner, side) {
		return false, nil
	}
	delete(s.rels, relationshipID)
	return true, nil
}

func (v memRels) SetDone(ctx context.Context, relationshipID, owner uuid.UUID, side models.Role, isDone bool) (bool, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rels[relationshipID]
	if !ok || !owns(r, owner, side) {
		return false, nil
	}
	r.IsDone = isDone
	return true, nil
}

func (v memRels) ListSpecialistsForClient(ctx context.Context, clientID uuid.UUID) ([]models.ManagedContact, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ManagedContact, 0)
	for _, r := range s.rels {
		if r.ClientID != clientID {
			continue
		}
		out = append(out, models.ManagedContact{
			PublicUser:     s.users[r.SpecialistID].Public(),
			RelationshipID: r.ID,
			IsDone:         r.IsDone,
			DateAdded:      r.DateAdded,
		})
	}
	return out, nil
}

func (v memRels) ListClientsForSpecialist(ctx context.Context, specialistID uuid.UUID) ([]models.ManagedContact, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ManagedContact, 0)
	for _, r := range s.rels {
		if r.SpecialistID != specialistID {
			continue
		}
		out = append(out, models.ManagedContact{
			PublicUser:     s.users[r.ClientID].Public(),
			RelationshipID: r.ID,
			IsDone:         r.IsDone,
			DateAdded:      r.DateAdded,
		})
	}
	return out, nil
}

func (v memConvs) FindOrCreate(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, bool, error) {
	a, b := models.CanonicalPair(userA, userB)
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.ParticipantA == a && c.ParticipantB == b {
			copied := *c
			return &copied, false, nil
		}
	}
	c := &models.Conversation{
		ID:           uuid.New(),
		ParticipantA: a,
		ParticipantB: b,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.convs[c.ID] = c
	copied := *c
	return &copied, true, nil
}

func (v memConvs) GetForParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok || !c.HasParticipant(userID) {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (v memConvs) ListForParticipant(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ConversationSummary, 0)
	for _, c := range s.convs {
		if !c.HasParticipant(userID) {
			continue
		}
		sum := models.ConversationSummary{
			ID:          c.ID,
			Participant: s.users[c.OtherParticipant(userID)].Public(),
			UnreadCount: c.UnreadFor(userID),
			UpdatedAt:   c.UpdatedAt,
		}
		if c.LastMessageID != nil {
			for _, m := range s.msgs {
				if m.ID == *c.LastMessageID {
					copied := *m
					sum.LastMessage = &copied
					break
				}
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (v memConvs) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return 0, nil
	}
	flipped := 0
	for _, m := range s.msgs {
		if m.ConversationID == conversationID && m.RecipientID == userID && !m.IsRead {
			m.IsRead = true
			flipped++
		}
	}
	if flipped > 0 {
		c.UnreadCount = max(c.UnreadCount-flipped, 0)
		if c.ParticipantA == userID {
			c.UnreadA = 0
		}
		if c.ParticipantB == userID {
			c.UnreadB = 0
		}
	}
	return flipped, nil
}

func (v memMsgs) Send(ctx context.Context, conv *models.Conversation, senderID uuid.UUID, body string) (*models.Message, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	recipient := conv.OtherParticipant(senderID)
	s.nextMsgID++
	m := &models.Message{
		ID:             s.nextMsgID,
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipient,
		Body:           body,
		CreatedAt:      time.Now(),
	}
	s.msgs = append(s.msgs, m)

	stored := s.convs[conv.ID]
	id := m.ID
	stored.LastMessageID = &id
	stored.UnreadCount++
	if stored.ParticipantA == recipient {
		stored.UnreadA++
	} else {
		stored.UnreadB++
	}
	stored.UpdatedAt = time.Now()

	copied := *m
	return &copied, nil
}

func (v memMsgs) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0)
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v memMsgs) MarkRead(ctx context.Context, messageID int64, recipientID uuid.UUID) (*models.Message, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID != messageID || m.RecipientID != recipientID {
			continue
		}
		if !m.IsRead {
			m.IsRead = true
			if c, ok := s.convs[m.ConversationID]; ok {
				c.UnreadCount = max(c.UnreadCount-1, 0)
				if c.ParticipantA == recipientID {
					c.UnreadA = max(c.UnreadA-1, 0)
				} else {
					c.UnreadB = max(c.UnreadB-1, 0)
				}
			}
		}
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

// conversation returns the live row for counter assertions.
func (s *memStore) conversation(t *testing.T, id uuid.UUID) models.Conversation {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		t.Fatalf("conversation %s not found", id)
	}
	return *c
}

// --- test harness ---

// newTestRouter mirrors the route table in cmd/server/main.go against the
// in-memory store.
func newTestRouter(store *memStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidations()

	logger := zap.NewNop()
	userRepo := memUsers{store}
	authHandler := NewAuthHandler(userRepo, testSecret, time.Hour, logger)
	userHandler := NewUserHandler(userRepo, logger)
	managedHandler := NewManagedHandler(userRepo, memRels{store}, logger)
	messageHandler := NewMessageHandler(userRepo, memConvs{store}, memMsgs{store}, logger)

	r := gin.New()
	root := r.Group("/api")

	authGroup := root.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/verify", authHandler.Verify)

	authed := root.Group("")
	authed.Use(middleware.AuthMiddleware(testSecret, userRepo))

	users := authed.Group("/users")
	users.GET("/specialists", userHandler.ListSpecialists)
	users.GET("/clients", userHandler.ListClients)
	users.PUT("/availability", userHandler.UpdateAvailability)
	users.PATCH("/needed-specialists", userHandler.UpdateNeededSpecialists)

	managed := authed.Group("/managed")
	managed.POST("/specialists", managedHandler.AddSpecialist)
	managed.GET("/specialists", managedHandler.ListSpecialists)
	managed.DELETE("/specialists/:id", managedHandler.RemoveSpecialist)
	managed.PATCH("/relationships/specialist/:id/status", managedHandler.UpdateSpecialistStatus)
	managed.POST("/clients", managedHandler.AddClient)
	managed.GET("/clients", managedHandler.ListClients)
	managed.DELETE("/clients/:id", managedHandler.RemoveClient)
	managed.PATCH("/relationships/client/:id/status", managedHandler.UpdateClientStatus)

	messages := authed.Group("/messages")
	messages.GET("/conversations", messageHandler.ListConversations)
	messages.POST("/conversation", messageHandler.CreateConversation)
	messages.GET("/conversation/:id", messageHandler.GetMessages)
	messages.PATCH("/conversation/:id/read", messageHandler.MarkConversationRead)
	messages.POST("", messageHandler.SendMessage)
	messages.PATCH("/:id/read", messageHandler.MarkMessageRead)

	return r
}

func seedClient(t *testing.T, store *memStore, fullname string, needed []models.NeededSpecialist) *models.User {
	t.Helper()
	return seedUser(t, store, &models.User{
		Fullname:    fullname,
		Role:        models.RoleClient,
		Governorate: "Beirut",
		District:    "Beirut",
		Client:      &models.ClientProfile{NeededSpecialists: needed},
	})
}

func seedSpecialist(t *testing.T, store *memStore, fullname, specialty string) *models.User {
	t.Helper()
	return seedUser(t, store, &models.User{
		Fullname:    fullname,
		Role:        models.RoleSpecialist,
		Governorate: "Beirut",
		District:    "Beirut",
		Specialist:  &models.SpecialistProfile{Specialty: specialty, IsAvailable: true},
	})
}

func seedUser(t *testing.T, store *memStore, u *models.User) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u.PasswordHash = string(hash)
	if err := (memUsers{store}).Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", u.Fullname, err)
	}
	return u
}

func tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := auth.GenerateToken(u.ID, u.Role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, want, w.Body.String())
	}
}

package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	httpmw "github.com/worshipd/worshipd/internal/http"
	"github.com/worshipd/worshipd/internal/models"
	"github.com/worshipd/worshipd/internal/permission"
)

func openHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:handlers_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	errMigrate := conn.AutoMigrate(
		&models.User{}, &models.Group{}, &models.Membership{},
		&models.Music{}, &models.Setlist{}, &models.SetlistEntry{},
		&models.Session{},
	)
	if errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

// newRequestContext builds a gin test context carrying a JSON body and
// the authenticated user.
func newRequestContext(t *testing.T, method, target, userID string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if userID != "" {
		c.Set(httpmw.ContextUserID, userID)
	}
	return c, w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if errDecode := json.Unmarshal(w.Body.Bytes(), out); errDecode != nil {
		t.Fatalf("decode response %s: %v", w.Body.String(), errDecode)
	}
}

func seedUser(t *testing.T, conn *gorm.DB, name string) *models.User {
	t.Helper()
	user := models.User{Name: name, Email: name + "@example.com"}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user %s: %v", name, errCreate)
	}
	return &user
}

func seedGroup(t *testing.T, conn *gorm.DB, creator *models.User) *models.Group {
	t.Helper()
	group := models.Group{Name: "worship team", CreatedBy: creator.ID}
	if errCreate := conn.Create(&group).Error; errCreate != nil {
		t.Fatalf("seed group: %v", errCreate)
	}
	membership := models.Membership{UserID: creator.ID, GroupID: group.ID, Role: string(permission.RoleAdmin)}
	if errCreate := conn.Create(&membership).Error; errCreate != nil {
		t.Fatalf("seed creator membership: %v", errCreate)
	}
	return &group
}

func seedMembership(t *testing.T, conn *gorm.DB, user *models.User, group *models.Group, role permission.Role) {
	t.Helper()
	membership := models.Membership{UserID: user.ID, GroupID: group.ID, Role: string(role)}
	if errCreate := conn.Create(&membership).Error; errCreate != nil {
		t.Fatalf("seed membership: %v", errCreate)
	}
}

func seedMusic(t *testing.T, conn *gorm.DB, group *models.Group, creator *models.User, title string) *models.Music {
	t.Helper()
	music := models.Music{GroupID: group.ID, CreatedBy: creator.ID, Title: title}
	if errCreate := conn.Create(&music).Error; errCreate != nil {
		t.Fatalf("seed music %s: %v", title, errCreate)
	}
	return &music
}

func seedSetlist(t *testing.T, conn *gorm.DB, group *models.Group, creator *models.User) *models.Setlist {
	t.Helper()
	sl := models.Setlist{GroupID: group.ID, CreatedBy: creator.ID, Title: "sunday service"}
	if errCreate := conn.Create(&sl).Error; errCreate != nil {
		t.Fatalf("seed setlist: %v", errCreate)
	}
	return &sl
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

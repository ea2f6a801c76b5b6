package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/worshipd/worshipd/internal/models"
	"github.com/worshipd/worshipd/internal/permission"
)

func TestCreateMusicRequiresEditRole(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewMusicHandler(conn, nil, nil)
	creator := seedUser(t, conn, "creator")
	viewer := seedUser(t, conn, "viewer")
	group := seedGroup(t, conn, creator)
	seedMembership(t, conn, viewer, group, permission.RoleView)

	body := gin.H{
		"title": "Oceans", "author": "Hillsong United", "tone": "D",
		"tags":  []string{"worship", "slow"},
		"links": gin.H{"youtube": ""},
	}

	c, w := newRequestContext(t, http.MethodPost, "/x", viewer.ID, body)
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Create(c)
	wantStatus(t, w, http.StatusForbidden)

	c, w = newRequestContext(t, http.MethodPost, "/x", creator.ID, body)
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Create(c)
	wantStatus(t, w, http.StatusCreated)

	var music models.Music
	if errFind := conn.Where("title = ?", "Oceans").First(&music).Error; errFind != nil {
		t.Fatalf("load music: %v", errFind)
	}
	if string(music.Tags) == "" {
		t.Fatalf("tags column empty")
	}
}

func TestListMusicsSearch(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewMusicHandler(conn, nil, nil)
	creator := seedUser(t, conn, "creator")
	group := seedGroup(t, conn, creator)
	seedMusic(t, conn, group, creator, "Oceans")
	seedMusic(t, conn, group, creator, "Way Maker")

	c, w := newRequestContext(t, http.MethodGet, "/x?q=ocean", creator.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.List(c)
	wantStatus(t, w, http.StatusOK)

	var got struct {
		Musics []struct {
			Title string `json:"title"`
		} `json:"musics"`
		Total int64 `json:"total"`
	}
	decodeBody(t, w, &got)
	if got.Total != 1 || len(got.Musics) != 1 || got.Musics[0].Title != "Oceans" {
		t.Fatalf("search result = %+v", got)
	}
}

func TestGetMusicMembershipGate(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewMusicHandler(conn, nil, nil)
	creator := seedUser(t, conn, "creator")
	outsider := seedUser(t, conn, "outsider")
	group := seedGroup(t, conn, creator)
	music := seedMusic(t, conn, group, creator, "Oceans")

	c, w := newRequestContext(t, http.MethodGet, "/x", outsider.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: music.ID}}
	h.Get(c)
	wantStatus(t, w, http.StatusForbidden)

	c, w = newRequestContext(t, http.MethodGet, "/x", creator.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: music.ID}}
	h.Get(c)
	wantStatus(t, w, http.StatusOK)
}

func TestUpdateMusicCreatorBypass(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewMusicHandler(conn, nil, nil)
	creator := seedUser(t, conn, "creator")
	viewer := seedUser(t, conn, "viewer")
	group := seedGroup(t, conn, creator)
	seedMembership(t, conn, viewer, group, permission.RoleView)

	// A view-role member still edits a song they created themselves.
	own := seedMusic(t, conn, group, viewer, "My Song")
	c, w := newRequestContext(t, http.MethodPut, "/x", viewer.ID, gin.H{"tone": "E"})
	c.Params = gin.Params{{Key: "id", Value: own.ID}}
	h.Update(c)
	wantStatus(t, w, http.StatusOK)

	// But not one somebody else created.
	other := seedMusic(t, conn, group, creator, "Other Song")
	c, w = newRequestContext(t, http.MethodPut, "/x", viewer.ID, gin.H{"tone": "E"})
	c.Params = gin.Params{{Key: "id", Value: other.ID}}
	h.Update(c)
	wantStatus(t, w, http.StatusForbidden)
}

func TestDeleteMusicCreatorBypass(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewMusicHandler(conn, nil, nil)
	creator := seedUser(t, conn, "creator")
	viewer := seedUser(t, conn, "viewer")
	group := seedGroup(t, conn, creator)
	seedMembership(t, conn, viewer, group, permission.RoleView)

	// A view-role member cannot delete somebody else's song.
	other := seedMusic(t, conn, group, creator, "Other Song")
	c, w := newRequestContext(t, http.MethodDelete, "/x", viewer.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: other.ID}}
	h.Delete(c)
	wantStatus(t, w, http.StatusForbidden)

	// Deleting their own song works without an elevated role.
	own := seedMusic(t, conn, group, viewer, "My Song")
	c, w = newRequestContext(t, http.MethodDelete, "/x", viewer.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: own.ID}}
	h.Delete(c)
	wantStatus(t, w, http.StatusOK)

	var count int64
	if errCount := conn.Model(&models.Music{}).Where("id = ?", own.ID).Count(&count).Error; errCount != nil {
		t.Fatalf("count musics: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("music row survived deletion")
	}
}

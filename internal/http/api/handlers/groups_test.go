package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/worshipd/worshipd/internal/models"
	"github.com/worshipd/worshipd/internal/permission"
)

func TestCreateGroupGrantsCreatorAdmin(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewGroupHandler(conn)
	creator := seedUser(t, conn, "creator")

	c, w := newRequestContext(t, http.MethodPost, "/api/groups", creator.ID, gin.H{
		"name": "worship team", "description": "sunday crew",
	})
	h.Create(c)
	wantStatus(t, w, http.StatusCreated)

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &created)

	var membership models.Membership
	errFind := conn.Where("user_id = ? AND group_id = ?", creator.ID, created.ID).First(&membership).Error
	if errFind != nil {
		t.Fatalf("creator membership missing: %v", errFind)
	}
	if membership.Role != string(permission.RoleAdmin) {
		t.Fatalf("creator role = %q, want admin", membership.Role)
	}
}

func TestUpdateGroupRequiresEditRole(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewGroupHandler(conn)
	creator := seedUser(t, conn, "creator")
	viewer := seedUser(t, conn, "viewer")
	group := seedGroup(t, conn, creator)
	seedMembership(t, conn, viewer, group, permission.RoleView)

	c, w := newRequestContext(t, http.MethodPut, "/api/groups/"+group.ID, viewer.ID, gin.H{"name": "renamed"})
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Update(c)
	wantStatus(t, w, http.StatusForbidden)

	c, w = newRequestContext(t, http.MethodPut, "/api/groups/"+group.ID, creator.ID, gin.H{"name": "renamed"})
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Update(c)
	wantStatus(t, w, http.StatusOK)

	var group2 models.Group
	if errFind := conn.First(&group2, "id = ?", group.ID).Error; errFind != nil {
		t.Fatalf("reload group: %v", errFind)
	}
	if group2.Name != "renamed" {
		t.Fatalf("name = %q", group2.Name)
	}
}

func TestDeleteGroupCascades(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewGroupHandler(conn)
	creator := seedUser(t, conn, "creator")
	editor := seedUser(t, conn, "editor")
	group := seedGroup(t, conn, creator)
	seedMembership(t, conn, editor, group, permission.RoleEdit)
	music := seedMusic(t, conn, group, creator, "oceans")
	sl := seedSetlist(t, conn, group, creator)
	entry := models.SetlistEntry{SetlistID: sl.ID, MusicID: music.ID, Position: 0}
	if errCreate := conn.Create(&entry).Error; errCreate != nil {
		t.Fatalf("seed entry: %v", errCreate)
	}

	// The edit role is not enough for group deletion.
	c, w := newRequestContext(t, http.MethodDelete, "/api/groups/"+group.ID, editor.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Delete(c)
	wantStatus(t, w, http.StatusForbidden)

	c, w = newRequestContext(t, http.MethodDelete, "/api/groups/"+group.ID, creator.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Delete(c)
	wantStatus(t, w, http.StatusOK)

	for _, probe := range []struct {
		name  string
		model any
	}{
		{"group", &models.Group{}},
		{"membership", &models.Membership{}},
		{"music", &models.Music{}},
		{"setlist", &models.Setlist{}},
		{"entry", &models.SetlistEntry{}},
	} {
		var count int64
		if errCount := conn.Model(probe.model).Count(&count).Error; errCount != nil {
			t.Fatalf("count %s: %v", probe.name, errCount)
		}
		if count != 0 {
			t.Fatalf("%s rows survived group deletion", probe.name)
		}
	}
}

func TestAddMemberEndpointRules(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewGroupHandler(conn)
	creator := seedUser(t, conn, "creator")
	viewer := seedUser(t, conn, "viewer")
	target := seedUser(t, conn, "target")
	group := seedGroup(t, conn, creator)
	seedMembership(t, conn, viewer, group, permission.RoleView)

	// Non-admin cannot add members.
	c, w := newRequestContext(t, http.MethodPost, "/api/groups/"+group.ID+"/members", viewer.ID, gin.H{
		"user_id": target.ID, "role": "edit",
	})
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.AddMember(c)
	wantStatus(t, w, http.StatusForbidden)

	c, w = newRequestContext(t, http.MethodPost, "/api/groups/"+group.ID+"/members", creator.ID, gin.H{
		"user_id": target.ID, "role": "edit",
	})
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.AddMember(c)
	wantStatus(t, w, http.StatusCreated)

	// Unknown role is rejected.
	c, w = newRequestContext(t, http.MethodPost, "/api/groups/"+group.ID+"/members", creator.ID, gin.H{
		"user_id": target.ID, "role": "owner",
	})
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.AddMember(c)
	wantStatus(t, w, http.StatusBadRequest)
}

func TestJoinEndpoint(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewGroupHandler(conn)
	creator := seedUser(t, conn, "creator")
	joiner := seedUser(t, conn, "joiner")
	group := seedGroup(t, conn, creator)

	c, w := newRequestContext(t, http.MethodPost, "/api/groups/"+group.ID+"/join", joiner.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Join(c)
	wantStatus(t, w, http.StatusCreated)

	var membership models.Membership
	if errFind := conn.Where("user_id = ? AND group_id = ?", joiner.ID, group.ID).First(&membership).Error; errFind != nil {
		t.Fatalf("membership missing: %v", errFind)
	}
	if membership.Role != string(permission.RoleView) {
		t.Fatalf("joined role = %q, want view", membership.Role)
	}

	// Joining twice conflicts.
	c, w = newRequestContext(t, http.MethodPost, "/api/groups/"+group.ID+"/join", joiner.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Join(c)
	wantStatus(t, w, http.StatusConflict)
}

func TestChangeRoleCreatorImmutableOverHTTP(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewGroupHandler(conn)
	creator := seedUser(t, conn, "creator")
	admin := seedUser(t, conn, "admin")
	group := seedGroup(t, conn, creator)
	seedMembership(t, conn, admin, group, permission.RoleAdmin)

	c, w := newRequestContext(t, http.MethodPut, "/x", admin.ID, gin.H{"role": "view"})
	c.Params = gin.Params{{Key: "id", Value: group.ID}, {Key: "userID", Value: creator.ID}}
	h.ChangeRole(c)
	wantStatus(t, w, http.StatusForbidden)
}

func TestRemoveMemberSelfRemovalRejected(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewGroupHandler(conn)
	creator := seedUser(t, conn, "creator")
	group := seedGroup(t, conn, creator)

	c, w := newRequestContext(t, http.MethodDelete, "/x", creator.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: group.ID}, {Key: "userID", Value: creator.ID}}
	h.RemoveMember(c)
	wantStatus(t, w, http.StatusBadRequest)
}

func TestLeaveEndpoint(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewGroupHandler(conn)
	creator := seedUser(t, conn, "creator")
	member := seedUser(t, conn, "member")
	group := seedGroup(t, conn, creator)
	seedMembership(t, conn, member, group, permission.RoleView)

	// The creator can never leave.
	c, w := newRequestContext(t, http.MethodDelete, "/x", creator.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Leave(c)
	wantStatus(t, w, http.StatusForbidden)

	c, w = newRequestContext(t, http.MethodDelete, "/x", member.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Leave(c)
	wantStatus(t, w, http.StatusOK)

	var count int64
	if errCount := conn.Model(&models.Membership{}).Where("group_id = ?", group.ID).Count(&count).Error; errCount != nil {
		t.Fatalf("count memberships: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("memberships = %d after leave, want 1", count)
	}
}

func TestLastMemberLeavingDeletesGroup(t *testing.T) {
	conn := openHandlerTestDB(t)
	h := NewGroupHandler(conn)
	creator := seedUser(t, conn, "creator")
	member := seedUser(t, conn, "member")
	group := seedGroup(t, conn, creator)
	seedMembership(t, conn, member, group, permission.RoleView)

	// Simulate the creator's account going away; the sole remaining
	// member leaving then deletes the group.
	errPurge := conn.Where("user_id = ? AND group_id = ?", creator.ID, group.ID).Delete(&models.Membership{}).Error
	if errPurge != nil {
		t.Fatalf("remove creator membership: %v", errPurge)
	}

	c, w := newRequestContext(t, http.MethodDelete, "/x", member.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: group.ID}}
	h.Leave(c)
	wantStatus(t, w, http.StatusOK)

	var groups int64
	if errCount := conn.Model(&models.Group{}).Where("id = ?", group.ID).Count(&groups).Error; errCount != nil {
		t.Fatalf("count groups: %v", errCount)
	}
	if groups != 0 {
		t.Fatalf("group survived last member leaving")
	}
}

// Package permission implements the role model gating every group
// operation: a membership role lattice (view < edit < admin) plus the
// creator bypass. Checks take the transaction they should run in, so
// callers can combine them with existence checks and writes in one
// atomic unit.
//
// Every check distinguishes "the group does not exist" (not found)
// from "you may not do this" (forbidden).
package permission

import (
	"errors"

	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/models"
)

// Role is a membership capability level.
type Role string

// Roles, weakest first.
const (
	RoleView  Role = "view"
	RoleEdit  Role = "edit"
	RoleAdmin Role = "admin"
)

var roleRank = map[Role]int{
	RoleView:  1,
	RoleEdit:  2,
	RoleAdmin: 3,
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if _, ok := roleRank[role]; !ok {
		return "", apperr.InvalidInput("invalid role, expected view, edit or admin")
	}
	return role, nil
}

// Covers reports whether the role grants at least the given capability.
func (r Role) Covers(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// loadGroup fetches a group or reports not found.
func loadGroup(tx *gorm.DB, groupID string) (*models.Group, error) {
	var group models.Group
	if errFind := tx.First(&group, "id = ?", groupID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("group not found")
		}
		return nil, errFind
	}
	return &group, nil
}

// RoleOf returns the actor's membership role in the group, if any.
func RoleOf(tx *gorm.DB, actorID, groupID string) (Role, bool, error) {
	var membership models.Membership
	errFind := tx.Where("user_id = ? AND group_id = ?", actorID, groupID).First(&membership).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errFind
	}
	return Role(membership.Role), true, nil
}

// Require authorizes capability min on the group for the actor. The
// group creator is authorized for everything regardless of membership.
func Require(tx *gorm.DB, actorID, groupID string, min Role) error {
	group, errLoad := loadGroup(tx, groupID)
	if errLoad != nil {
		return errLoad
	}
	if group.CreatedBy == actorID {
		return nil
	}
	role, ok, errRole := RoleOf(tx, actorID, groupID)
	if errRole != nil {
		return errRole
	}
	if !ok || !role.Covers(min) {
		return apperr.Forbidden("insufficient permission on this group")
	}
	return nil
}

// RequireForEntity authorizes capability min on the group, or grants
// access outright when the actor created the entity (creator bypass
// for songs and setlists).
func RequireForEntity(tx *gorm.DB, actorID, groupID, entityCreatorID string, min Role) error {
	if actorID == entityCreatorID {
		if _, errLoad := loadGroup(tx, groupID); errLoad != nil {
			return errLoad
		}
		return nil
	}
	return Require(tx, actorID, groupID, min)
}

// RequireMember authorizes any membership (or creator status) on the
// group, the gate for read access.
func RequireMember(tx *gorm.DB, actorID, groupID string) error {
	return Require(tx, actorID, groupID, RoleView)
}

// requireAdmin authorizes membership governance: admin role or
// creator status.
func requireAdmin(tx *gorm.DB, actorID, groupID string, message string) (*models.Group, error) {
	group, errLoad := loadGroup(tx, groupID)
	if errLoad != nil {
		return nil, errLoad
	}
	if group.CreatedBy == actorID {
		return group, nil
	}
	role, ok, errRole := RoleOf(tx, actorID, groupID)
	if errRole != nil {
		return nil, errRole
	}
	if !ok || !role.Covers(RoleAdmin) {
		return nil, apperr.Forbidden(message)
	}
	return group, nil
}

// AddMember adds the target user to the group, or updates the role of
// an existing member. The first member of an empty group is always
// granted admin so governance bootstraps even when the creation and
// membership flows are decoupled.
func AddMember(tx *gorm.DB, actorID, groupID, targetID string, role Role) (*models.Membership, error) {
	group, errAuth := requireAdmin(tx, actorID, groupID, "only admins can add members to this group")
	if errAuth != nil {
		return nil, errAuth
	}

	var target models.User
	if errFind := tx.First(&target, "id = ?", targetID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, errFind
	}

	var existing models.Membership
	errExisting := tx.Where("user_id = ? AND group_id = ?", targetID, groupID).First(&existing).Error
	if errExisting == nil {
		if group.CreatedBy == targetID && Role(existing.Role) == RoleAdmin {
			return nil, apperr.Forbidden("the group creator's admin role cannot be changed")
		}
		existing.Role = string(role)
		if errSave := tx.Save(&existing).Error; errSave != nil {
			return nil, errSave
		}
		return &existing, nil
	}
	if !errors.Is(errExisting, gorm.ErrRecordNotFound) {
		return nil, errExisting
	}

	var memberCount int64
	if errCount := tx.Model(&models.Membership{}).Where("group_id = ?", groupID).Count(&memberCount).Error; errCount != nil {
		return nil, errCount
	}
	if memberCount == 0 {
		role = RoleAdmin
	}

	membership := models.Membership{
		UserID:  targetID,
		GroupID: groupID,
		Role:    string(role),
	}
	if errCreate := tx.Create(&membership).Error; errCreate != nil {
		return nil, errCreate
	}
	return &membership, nil
}

// ChangeRole updates an existing member's role. The creator's admin
// role is immutable while held.
func ChangeRole(tx *gorm.DB, actorID, groupID, targetID string, role Role) (*models.Membership, error) {
	group, errAuth := requireAdmin(tx, actorID, groupID, "only admins can change member roles in this group")
	if errAuth != nil {
		return nil, errAuth
	}

	var membership models.Membership
	if errFind := tx.Where("user_id = ? AND group_id = ?", targetID, groupID).First(&membership).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user is not a member of this group")
		}
		return nil, errFind
	}

	if group.CreatedBy == targetID && Role(membership.Role) == RoleAdmin {
		return nil, apperr.Forbidden("the group creator's admin role cannot be changed")
	}

	membership.Role = string(role)
	if errSave := tx.Save(&membership).Error; errSave != nil {
		return nil, errSave
	}
	return &membership, nil
}

// RemoveMember removes the target user from the group. The creator can
// never be removed, and actors must use Leave to remove themselves.
func RemoveMember(tx *gorm.DB, actorID, groupID, targetID string) error {
	group, errAuth := requireAdmin(tx, actorID, groupID, "only admins can remove members from this group")
	if errAuth != nil {
		return errAuth
	}
	if actorID == targetID {
		return apperr.InvalidInput("use the leave operation to remove yourself")
	}
	if group.CreatedBy == targetID {
		return apperr.Forbidden("the group creator cannot be removed")
	}

	var membership models.Membership
	if errFind := tx.Where("user_id = ? AND group_id = ?", targetID, groupID).First(&membership).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user is not a member of this group")
		}
		return errFind
	}
	return tx.Delete(&membership).Error
}

// Leave removes the actor's own membership. A departing admin hands
// admin to the oldest remaining member; lastMember reports that nobody
// is left, in which case the caller is expected to delete the group in
// the same transaction.
func Leave(tx *gorm.DB, actorID, groupID string) (lastMember bool, err error) {
	group, errLoad := loadGroup(tx, groupID)
	if errLoad != nil {
		return false, errLoad
	}
	if group.CreatedBy == actorID {
		return false, apperr.Forbidden("the group creator cannot leave; delete the group instead")
	}

	var membership models.Membership
	if errFind := tx.Where("user_id = ? AND group_id = ?", actorID, groupID).First(&membership).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return false, apperr.NotFound("you are not a member of this group")
		}
		return false, errFind
	}

	if Role(membership.Role) == RoleAdmin {
		var otherAdmins int64
		if errCount := tx.Model(&models.Membership{}).
			Where("group_id = ? AND user_id <> ? AND role = ?", groupID, actorID, string(RoleAdmin)).
			Count(&otherAdmins).Error; errCount != nil {
			return false, errCount
		}
		var successor models.Membership
		errSuccessor := tx.Where("group_id = ? AND user_id <> ?", groupID, actorID).
			Order("created_at ASC").
			First(&successor).Error
		switch {
		case errSuccessor == nil:
			// Promote the longest-standing member when no admin remains,
			// so the group is never left without one.
			if otherAdmins == 0 {
				successor.Role = string(RoleAdmin)
				if errSave := tx.Save(&successor).Error; errSave != nil {
					return false, errSave
				}
			}
		case errors.Is(errSuccessor, gorm.ErrRecordNotFound):
			lastMember = true
		default:
			return false, errSuccessor
		}
	} else {
		var others int64
		if errCount := tx.Model(&models.Membership{}).
			Where("group_id = ? AND user_id <> ?", groupID, actorID).
			Count(&others).Error; errCount != nil {
			return false, errCount
		}
		lastMember = others == 0
	}

	if errDelete := tx.Delete(&membership).Error; errDelete != nil {
		return false, errDelete
	}
	return lastMember, nil
}

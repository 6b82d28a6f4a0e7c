package models

import (
	"context"
	"time"
)

type PermissionKind string

const (
	PermissionEdit        PermissionKind = "edit"
	PermissionRead        PermissionKind = "read"
	PermissionAddChildren PermissionKind = "add_children"
)

// maxFolderDepth bounds the walk up the folder tree.
const maxFolderDepth = 64

type User struct {
	ID          string `firestore:"id,omitempty" json:"id"`
	Username    string `firestore:"username" json:"username"`
	APIKey      string `firestore:"apiKey" json:"-"`
	IsStaff     bool   `firestore:"isStaff" json:"isStaff"`
	IsSuperuser bool   `firestore:"isSuperuser" json:"isSuperuser"`
}

// AnonymousUser is the caller when no credentials were presented.
var AnonymousUser = &User{}

func (u *User) IsAuthenticated() bool {
	return u != nil && u.ID != ""
}

// FolderPermission grants one user rights on a folder and its contents.
type FolderPermission struct {
	UserID         string `firestore:"userId" json:"userId"`
	CanEdit        bool   `firestore:"canEdit" json:"canEdit"`
	CanRead        bool   `firestore:"canRead" json:"canRead"`
	CanAddChildren bool   `firestore:"canAddChildren" json:"canAddChildren"`
}

func (p FolderPermission) allows(kind PermissionKind) bool {
	switch kind {
	case PermissionEdit:
		return p.CanEdit
	case PermissionRead:
		return p.CanRead
	case PermissionAddChildren:
		return p.CanAddChildren
	}
	return false
}

type Folder struct {
	ID          string             `firestore:"id,omitempty" json:"id"`
	Name        string             `firestore:"name" json:"name"`
	ParentID    string             `firestore:"parentId,omitempty" json:"parentId,omitempty"`
	OwnerID     string             `firestore:"ownerId,omitempty" json:"ownerId,omitempty"`
	Permissions []FolderPermission `firestore:"permissions,omitempty" json:"permissions,omitempty"`
	CreatedAt   time.Time          `firestore:"createdAt,omitempty" json:"createdAt"`
}

// FolderLookup resolves folders by ID.
type FolderLookup interface {
	GetFolder(ctx context.Context, id string) (*Folder, error)
}

// checkUser applies the rules shared by files and folders. decided is false
// when the caller has to look further (ownership, folder tree).
func checkUser(user *User) (allowed, decided bool) {
	if !user.IsAuthenticated() || !user.IsStaff {
		return false, true
	}
	if user.IsSuperuser {
		return true, true
	}
	return false, false
}

// HasGenericPermission checks the folder and then its ancestors.
// A folder that can't be loaded denies.
func (f *Folder) HasGenericPermission(ctx context.Context, folders FolderLookup, user *User, kind PermissionKind) bool {
	if allowed, decided := checkUser(user); decided {
		return allowed
	}

	seen := make(map[string]bool)
	current := f
	for depth := 0; current != nil && depth < maxFolderDepth; depth++ {
		if current.OwnerID != "" && current.OwnerID == user.ID {
			return true
		}
		for _, p := range current.Permissions {
			if p.UserID == user.ID && p.allows(kind) {
				return true
			}
		}

		seen[current.ID] = true
		if current.ParentID == "" || seen[current.ParentID] || folders == nil {
			return false
		}
		parent, err := folders.GetFolder(ctx, current.ParentID)
		if err != nil {
			return false
		}
		current = parent
	}
	return false
}

// HasGenericPermission reports whether user may act on the image.
func (img *ImageRecord) HasGenericPermission(ctx context.Context, folders FolderLookup, user *User, kind PermissionKind) bool {
	if allowed, decided := checkUser(user); decided {
		return allowed
	}
	if img.OwnerID != "" && img.OwnerID == user.ID {
		return true
	}
	if img.FolderID == "" || folders == nil {
		return false
	}
	folder, err := folders.GetFolder(ctx, img.FolderID)
	if err != nil {
		return false
	}
	return folder.HasGenericPermission(ctx, folders, user, kind)
}

func (img *ImageRecord) HasEditPermission(ctx context.Context, folders FolderLookup, user *User) bool {
	return img.HasGenericPermission(ctx, folders, user, PermissionEdit)
}

func (img *ImageRecord) HasReadPermission(ctx context.Context, folders FolderLookup, user *User) bool {
	return img.HasGenericPermission(ctx, folders, user, PermissionRead)
}

func (img *ImageRecord) HasAddChildrenPermission(ctx context.Context, folders FolderLookup, user *User) bool {
	return img.HasGenericPermission(ctx, folders, user, PermissionAddChildren)
}

package entities

import (
	"testing"
	"time"
)

func TestPermissionGrant_Validate(t *testing.T) {
	tests := []struct {
		name    string
		grant   *PermissionGrant
		wantErr bool
	}{
		{
			name: "valid instance grant",
			grant: &PermissionGrant{
				RoleID: "editors", EntityType: "task", InstanceID: "t1",
				Level: LevelEdit, Inheritance: InheritNone,
			},
			wantErr: false,
		},
		{
			name: "valid sentinel grant",
			grant: &PermissionGrant{
				RoleID: "editors", EntityType: "task", InstanceID: AllInstances,
				Level: LevelCreate, Inheritance: InheritNone,
			},
			wantErr: false,
		},
		{
			name: "valid mapped grant",
			grant: &PermissionGrant{
				RoleID: "editors", EntityType: "project", InstanceID: "p1",
				Level: LevelOwner, Inheritance: InheritMapped,
				ChildLevels: map[string]Level{"task": LevelEdit, ChildDefaultKey: LevelView},
			},
			wantErr: false,
		},
		{
			name: "missing role",
			grant: &PermissionGrant{
				EntityType: "task", InstanceID: "t1",
				Level: LevelEdit, Inheritance: InheritNone,
			},
			wantErr: true,
		},
		{
			name: "create level on specific instance",
			grant: &PermissionGrant{
				RoleID: "editors", EntityType: "task", InstanceID: "t1",
				Level: LevelCreate, Inheritance: InheritNone,
			},
			wantErr: true,
		},
		{
			name: "mapped without child levels",
			grant: &PermissionGrant{
				RoleID: "editors", EntityType: "project", InstanceID: "p1",
				Level: LevelOwner, Inheritance: InheritMapped,
			},
			wantErr: true,
		},
		{
			name: "mapped with invalid child type code",
			grant: &PermissionGrant{
				RoleID: "editors", EntityType: "project", InstanceID: "p1",
				Level: LevelOwner, Inheritance: InheritMapped,
				ChildLevels: map[string]Level{"Bad-Type": LevelView},
			},
			wantErr: true,
		},
		{
			name: "unknown inheritance mode",
			grant: &PermissionGrant{
				RoleID: "editors", EntityType: "task", InstanceID: "t1",
				Level: LevelEdit, Inheritance: "viral",
			},
			wantErr: true,
		},
		{
			name: "invalid level",
			grant: &PermissionGrant{
				RoleID: "editors", EntityType: "task", InstanceID: "t1",
				Level: Level(99), Inheritance: InheritNone,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.grant.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPermissionGrant_ExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"no expiry", nil, false},
		{"future expiry", &future, false},
		{"past expiry", &past, true},
		{"expiry exactly now", &now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grant := &PermissionGrant{ExpiresAt: tt.expiresAt}
			if got := grant.ExpiredAt(now); got != tt.want {
				t.Errorf("ExpiredAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermissionGrant_LevelFor(t *testing.T) {
	tests := []struct {
		name      string
		grant     *PermissionGrant
		childType string
		wantLevel Level
		wantOK    bool
	}{
		{
			name:      "none contributes nothing",
			grant:     &PermissionGrant{Level: LevelOwner, Inheritance: InheritNone},
			childType: "task",
			wantLevel: LevelNone,
			wantOK:    false,
		},
		{
			name:      "cascade passes level through",
			grant:     &PermissionGrant{Level: LevelDelete, Inheritance: InheritCascade},
			childType: "task",
			wantLevel: LevelDelete,
			wantOK:    true,
		},
		{
			name: "mapped uses child type entry",
			grant: &PermissionGrant{
				Level: LevelOwner, Inheritance: InheritMapped,
				ChildLevels: map[string]Level{"task": LevelContribute, ChildDefaultKey: LevelView},
			},
			childType: "task",
			wantLevel: LevelContribute,
			wantOK:    true,
		},
		{
			name: "mapped falls back to default",
			grant: &PermissionGrant{
				Level: LevelOwner, Inheritance: InheritMapped,
				ChildLevels: map[string]Level{"task": LevelContribute, ChildDefaultKey: LevelView},
			},
			childType: "folder",
			wantLevel: LevelView,
			wantOK:    true,
		},
		{
			name: "mapped without default contributes nothing to unmapped types",
			grant: &PermissionGrant{
				Level: LevelOwner, Inheritance: InheritMapped,
				ChildLevels: map[string]Level{"task": LevelContribute},
			},
			childType: "folder",
			wantLevel: LevelNone,
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := tt.grant.LevelFor(tt.childType)
			if level != tt.wantLevel || ok != tt.wantOK {
				t.Errorf("LevelFor() = (%v, %v), want (%v, %v)", level, ok, tt.wantLevel, tt.wantOK)
			}
		})
	}
}

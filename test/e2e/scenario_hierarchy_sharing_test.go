package e2e

import (
	"net/http"
	"testing"
)

// TestScenario_ProjectHierarchySharing walks a document-sharing style
// scenario: an operator defines a project/task hierarchy, an editors role
// receives a cascading view grant on one project, and a targeted deny
// carves a single task back out.
func TestScenario_ProjectHierarchySharing(t *testing.T) {
	ts := SetupE2ETest(t)
	defer ts.Teardown(t)

	ts.SeedAdmin(t, "root", "role", "person", "project", "task")
	ts.SeedMember(t, "editors", "alice")

	t.Log("Step 1: defining project and task types")
	status := ts.Do(t, http.MethodPost, "/v1/entity-types", "root", map[string]interface{}{
		"code":        "task",
		"name":        "Task",
		"plural_name": "Tasks",
		"table":       "tasks",
		"name_column": "title",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create task type: got status %d", status)
	}
	status = ts.Do(t, http.MethodPost, "/v1/entity-types", "root", map[string]interface{}{
		"code":        "project",
		"name":        "Project",
		"plural_name": "Projects",
		"table":       "projects",
		"name_column": "name",
		"code_column": "code",
		"child_types": []string{"task"},
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create project type: got status %d", status)
	}

	t.Log("Step 2: creating a project with two tasks")
	var project map[string]interface{}
	status = ts.Do(t, http.MethodPost, "/v1/entities/project", "root", map[string]interface{}{
		"data": map[string]interface{}{"name": "Apollo", "code": "APL"},
	}, &project)
	if status != http.StatusCreated {
		t.Fatalf("create project: got status %d", status)
	}
	projectID, _ := project["id"].(string)
	if projectID == "" {
		t.Fatal("create project: missing id in response")
	}

	taskIDs := make([]string, 0, 2)
	for _, title := range []string{"Design", "Launch"} {
		var task map[string]interface{}
		status = ts.Do(t, http.MethodPost, "/v1/entities/task", "root", map[string]interface{}{
			"data":   map[string]interface{}{"title": title},
			"parent": map[string]string{"type": "project", "id": projectID},
		}, &task)
		if status != http.StatusCreated {
			t.Fatalf("create task %q: got status %d", title, status)
		}
		taskIDs = append(taskIDs, task["id"].(string))
	}

	t.Log("Step 3: cascading view grant for editors on the project")
	status = ts.Do(t, http.MethodPut, "/v1/grants", "root", map[string]interface{}{
		"role_id":     "editors",
		"entity_type": "project",
		"instance_id": projectID,
		"level":       "view",
		"inheritance": "cascade",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("grant editors view: got status %d", status)
	}

	assertAuthorize(t, ts, "alice", "project", projectID, "view", true)
	assertAuthorize(t, ts, "alice", "task", taskIDs[0], "view", true)
	assertAuthorize(t, ts, "alice", "task", taskIDs[1], "view", true)
	assertAuthorize(t, ts, "alice", "task", taskIDs[0], "edit", false)

	t.Log("Step 4: denying one task for editors")
	status = ts.Do(t, http.MethodPut, "/v1/grants", "root", map[string]interface{}{
		"role_id":     "editors",
		"entity_type": "task",
		"instance_id": taskIDs[0],
		"level":       "view",
		"deny":        true,
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("deny grant: got status %d", status)
	}

	assertAuthorize(t, ts, "alice", "task", taskIDs[0], "view", false)
	assertAuthorize(t, ts, "alice", "task", taskIDs[1], "view", true)

	t.Log("Step 5: access filters reflect the effective grants")
	var filter struct {
		Decision    string   `json:"decision"`
		InstanceIDs []string `json:"instance_ids"`
	}
	status = ts.Do(t, http.MethodPost, "/v1/access-filter", "alice", map[string]string{
		"entity_type": "task", "level": "view",
	}, &filter)
	if status != http.StatusOK {
		t.Fatalf("access filter for alice: got status %d", status)
	}
	if filter.Decision != "subset" {
		t.Errorf("access filter for alice: got decision %q, want subset", filter.Decision)
	}
	if len(filter.InstanceIDs) != 1 || filter.InstanceIDs[0] != taskIDs[1] {
		t.Errorf("access filter for alice: got instances %v, want [%s]", filter.InstanceIDs, taskIDs[1])
	}

	status = ts.Do(t, http.MethodPost, "/v1/access-filter", "root", map[string]string{
		"entity_type": "task", "level": "view",
	}, &filter)
	if status != http.StatusOK {
		t.Fatalf("access filter for root: got status %d", status)
	}
	if filter.Decision != "allow_all" {
		t.Errorf("access filter for root: got decision %q, want allow_all", filter.Decision)
	}

	t.Log("Step 6: listing project children")
	var children struct {
		ChildIDs []string `json:"child_ids"`
	}
	status = ts.Do(t, http.MethodGet, "/v1/entities/project/"+projectID+"/children/task", "root", nil, &children)
	if status != http.StatusOK {
		t.Fatalf("list children: got status %d", status)
	}
	if len(children.ChildIDs) != 2 {
		t.Errorf("list children: got %v, want both task IDs", children.ChildIDs)
	}
}

func assertAuthorize(t *testing.T, ts *E2ETestServer, personID, entityType, instanceID, level string, want bool) {
	t.Helper()

	var resp struct {
		Allowed bool `json:"allowed"`
	}
	status := ts.Do(t, http.MethodPost, "/v1/authorize", personID, map[string]string{
		"entity_type": entityType,
		"instance_id": instanceID,
		"level":       level,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("authorize %s %s on %s:%s: got status %d", personID, level, entityType, instanceID, status)
	}
	if resp.Allowed != want {
		t.Errorf("authorize %s %s on %s:%s: got %v, want %v", personID, level, entityType, instanceID, resp.Allowed, want)
	}
}

package handlers

import (
	"context"
	"net/http"
	"testing"
)

func TestFollowHandlerFollowUnfollow(t *testing.T) {
	env := newTestEnv(t)
	token := env.addUser(t, viewer, "viewer")
	env.addUser(t, creatorA, "creator_a")

	var resp map[string]bool
	if status := env.do(t, http.MethodPost, "/api/users/"+creatorA+"/follow", token, nil, &resp); status != http.StatusOK {
		t.Fatalf("expected follow success got %d", status)
	}
	if !resp["following"] {
		t.Fatalf("unexpected follow response %v", resp)
	}

	ids, err := env.follows.FollowingIDs(context.Background(), viewer, 10)
	if err != nil {
		t.Fatalf("following ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != creatorA {
		t.Fatalf("expected to follow %s got %v", creatorA, ids)
	}

	if status := env.do(t, http.MethodPost, "/api/users/"+creatorA+"/follow", token, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected duplicate follow rejected got %d", status)
	}

	if status := env.do(t, http.MethodDelete, "/api/users/"+creatorA+"/follow", token, nil, &resp); status != http.StatusOK {
		t.Fatalf("expected unfollow success got %d", status)
	}
	if resp["following"] {
		t.Fatalf("unexpected unfollow response %v", resp)
	}
	if status := env.do(t, http.MethodDelete, "/api/users/"+creatorA+"/follow", token, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected unfollow without follow rejected got %d", status)
	}
}

func TestFollowHandlerRejectsInvalidTargets(t *testing.T) {
	env := newTestEnv(t)
	token := env.addUser(t, viewer, "viewer")
	env.addUser(t, creatorC, "creator_c")

	env.users.mu.Lock()
	inactive := env.users.users[creatorC]
	inactive.IsActive = false
	env.users.users[creatorC] = inactive
	env.users.mu.Unlock()

	if status := env.do(t, http.MethodPost, "/api/users/"+viewer+"/follow", token, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected self follow rejected got %d", status)
	}
	if status := env.do(t, http.MethodPost, "/api/users/"+creatorB+"/follow", token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected unknown user to be 404 got %d", status)
	}
	if status := env.do(t, http.MethodPost, "/api/users/"+creatorC+"/follow", token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected inactive user to be 404 got %d", status)
	}
	if status := env.do(t, http.MethodPost, "/api/users/"+creatorA+"/follow", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected follow to require auth got %d", status)
	}
}

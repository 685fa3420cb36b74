package main

import (
	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/document"
	"github.com/alecgard/mergeflow/internal/group"
	"github.com/alecgard/mergeflow/internal/invite"
	"github.com/alecgard/mergeflow/internal/member"
	"github.com/alecgard/mergeflow/internal/store"
	"github.com/alecgard/mergeflow/internal/team"
)

type services struct {
	teams     *team.Service
	members   *member.Service
	groups    *group.Service
	documents *document.Service
}

// newServices wires the domain services. objects and limiter may be nil.
func newServices(st store.Store, invites *invite.Service, objects document.ObjectStore, limiter team.Limiter, rec audit.Recorder, maxTags int) *services {
	docs := document.NewService(st, invites, objects, rec, maxTags)
	return &services{
		teams:     team.NewService(st, invites, limiter, docs, rec),
		members:   member.NewService(st, invites, rec),
		groups:    group.NewService(st, rec),
		documents: docs,
	}
}

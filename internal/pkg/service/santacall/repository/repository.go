// Package repository provides in-memory storage of the Order, VideoJob and Conversation entities.
//
// Each Update* method applies the update function atomically, under the repository lock.
// The update function receives a copy of the entity and must not block.
package repository

import (
	"sort"
	"sync"

	"github.com/santacall/santacall/internal/pkg/service/santacall/model"
)

type Repository struct {
	lock sync.RWMutex

	orders map[string]model.Order

	jobs        map[string]model.VideoJob
	jobByHandle map[string]string
	activeJob   map[string]string   // orderID -> non-terminal jobID
	jobsOfOrder map[string][]string // orderID -> all jobIDs, in creation order

	conversations map[string]model.Conversation
	convByHandle  map[string]string
	convOfOrder   map[string]string
}

func New() *Repository {
	return &Repository{
		orders:        make(map[string]model.Order),
		jobs:          make(map[string]model.VideoJob),
		jobByHandle:   make(map[string]string),
		activeJob:     make(map[string]string),
		jobsOfOrder:   make(map[string][]string),
		conversations: make(map[string]model.Conversation),
		convByHandle:  make(map[string]string),
		convOfOrder:   make(map[string]string),
	}
}

func sortByCreated[T any](items []T, created func(T) (int64, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idI := created(items[i])
		tj, idJ := created(items[j])
		if ti != tj {
			return ti < tj
		}
		return idI < idJ
	})
}

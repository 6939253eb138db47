package handler

import (
	"marketchat/internal/app/realtime"
	"marketchat/internal/app/store"
	"marketchat/internal/configs"
)

type AppDeps struct {
	Hub      *realtime.Hub
	Notifier *realtime.Notifier
	Config   *configs.AppConfig
	Store    store.Store
}

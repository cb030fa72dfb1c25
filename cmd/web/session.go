package main

import (
	"context"
	"slices"
)

// investigationsSessionKey holds the identifiers of the investigations the browser session started.
const investigationsSessionKey = "investigations"

func (app *application) ownedInvestigations(ctx context.Context) []string {
	ids, _ := app.sessionManager.Get(ctx, investigationsSessionKey).([]string)
	return ids
}

func (app *application) owns(ctx context.Context, id string) bool {
	return slices.Contains(app.ownedInvestigations(ctx), id)
}

func (app *application) claim(ctx context.Context, id string) {
	app.sessionManager.Put(ctx, investigationsSessionKey, append(app.ownedInvestigations(ctx), id))
}

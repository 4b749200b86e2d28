// Package state holds the bot's small file-backed stores.
package state

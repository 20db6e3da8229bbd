// Package wizard provides the interactive prompt behind "proxk8s init".
//
// Answers are collected with huh forms, turned into the flat key/value
// source understood by package config, and written as a .env file.
package wizard

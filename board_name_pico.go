//go:build tinygo && pico

package main

var boardName = "pico"

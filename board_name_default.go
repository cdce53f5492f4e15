//go:build tinygo && !pico && !xiao_rp2040

package main

var boardName = "default"

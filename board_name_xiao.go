//go:build tinygo && xiao_rp2040

package main

var boardName = "xiao-rp2040"

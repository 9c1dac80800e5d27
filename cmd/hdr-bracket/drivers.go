package main

import(
	_ "github.com/abworrall/hdr-bracket/pkg/camera/sim"
)

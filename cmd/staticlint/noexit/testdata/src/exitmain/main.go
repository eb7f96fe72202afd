package main

import (
	"os"
	sys "syscall"
)

func helper() {
	os.Exit(2)
}

func main() {
	helper()
	defer func() {
		os.Exit(1) // want `вызов os.Exit в функции main запрещён`
	}()
	sys.Exit(3) // want `вызов syscall.Exit в функции main запрещён`
}

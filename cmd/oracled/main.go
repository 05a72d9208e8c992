package main

const version = "0.1.0"

func main() {
	Execute(version)
}

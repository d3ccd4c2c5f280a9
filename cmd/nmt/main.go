// Command nmt trains and runs a German to English LSTM translation model.
package main

func main() {
	Execute()
}

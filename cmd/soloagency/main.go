// Command soloagency is a team of AI specialists for solopreneurs.
package main

func main() {
	Execute()
}

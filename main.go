// Command journal-crawler collects author contact emails from journals.
package main

import "github.com/JakeFAU/journal-email-crawler/cmd"

func main() {
	cmd.Execute()
}

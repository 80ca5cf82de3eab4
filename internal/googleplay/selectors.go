package googleplay

import (
	"fmt"
	"strings"
	"time"
)

// Everything below is tied to the console's current markup.

const signInURL = "https://accounts.google.com/signin/v2/identifier?service=androiddeveloper&passive=true&continue=https%3A%2F%2Fplay.google.com%2Fconsole%2Fdeveloper%2F"

const (
	identifierInput  = "//input[@id='identifierId']"
	identifierNext   = "//div[@id='identifierNext']"
	passwordInput    = "//div[@id='password']/descendant::input[@type='password']"
	passwordNext     = "//div[@id='passwordNext']"
	pageBody         = "//body"
	classicConsole   = "//span[contains(@class,'label')][contains(normalize-space(.),'Use classic Play Console')]/.."
	userAcquisition  = "//button/descendant::span[text()='User acquisition']"
	acquisitionLink  = "//a/descendant::span[text()='Acquisition reports']"
	dateSelector     = "//button[@aria-label='Cohort dates selector.']"
	datePanel        = dateSelector + "/following-sibling::div"
	panelBreakdown   = "(" + datePanel + "/descendant::button)[1]"
	panelNextPage    = datePanel + "/descendant::button[@aria-label='Next page']"
	panelPrevPage    = datePanel + "/descendant::button[@aria-label='Previous page']"
	notAvailableMark = datePanel + "/descendant::*[contains(text(),'" + dateNotAvailableText + "')]"

	businessNameClass    = "business-name"
	dateNotAvailableText = "Date not available"
	visitorsTitle        = "Number of people that have never installed your app who visited your store listing"
	installersTitle      = "Number of users who installed your app for the first time"
)

// Query parameters of the acquisition report url.
const (
	reportStartParam  = "apcs"
	reportEndParam    = "apce"
	reportWindowParam = "ts"
)

// xpathLiteral quotes s for use in an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

func businessName(name string) string {
	return fmt.Sprintf("//div[contains(@class,'%s')][normalize-space(.)=%s]", businessNameClass, xpathLiteral(name))
}

func appLink(appID string) string {
	return fmt.Sprintf("//a/descendant::div[text()=%s]", xpathLiteral(appID))
}

// dayLink selects the ordinal-th day link labelled day inside the panel.
func dayLink(day, ordinal int) string {
	return fmt.Sprintf("(%s/descendant::a[normalize-space(.)='%d'])[%d]", datePanel, day, ordinal)
}

func bulkExportLink(appID string) string {
	return fmt.Sprintf("//a[@href=%s]", xpathLiteral(fmt.Sprintf("#BulkExportPlace:bep=%s&bet=USER_ACQUISITION", appID)))
}

func yearAccordion(year int) string {
	return fmt.Sprintf("//div[contains(@class,'gwt-Label')][contains(text(),'%d')]", year)
}

// monthDownload is labelled in English regardless of the console locale.
func monthDownload(month time.Time) string {
	return fmt.Sprintf("//button[@aria-label='Download: Retained installers report, %s %d']", month.Month(), month.Year())
}

func exportPattern(appID string) string {
	return fmt.Sprintf("retained_installers_%s*.zip", appID)
}

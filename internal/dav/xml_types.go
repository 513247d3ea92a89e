package dav

import "encoding/xml"

// Wire-level multistatus types (C3). Namespace-aware by construction: every
// element name below pins its namespace explicitly rather than relying on
// prefix strings, so responses using "d:" or "D:" or no prefix at all parse
// identically.
const (
	nsDAV    = "DAV:"
	nsCalDAV = "urn:ietf:params:xml:ns:caldav"
	nsApple  = "http://apple.com/ns/ical/"
)

type multistatusXML struct {
	XMLName   xml.Name     `xml:"DAV: multistatus"`
	Responses []responseXML `xml:"DAV: response"`
}

type responseXML struct {
	Href      string        `xml:"DAV: href"`
	PropStats []propstatXML `xml:"DAV: propstat"`
	Status    string        `xml:"DAV: status"`
}

type propstatXML struct {
	Prop   propXML `xml:"DAV: prop"`
	Status string  `xml:"DAV: status"`
}

type propXML struct {
	ResourceType *resourceTypeXML `xml:"DAV: resourcetype"`
	DisplayName  string           `xml:"DAV: displayname"`

	CurrentUserPrincipal *hrefContainerXML `xml:"DAV: current-user-principal"`
	CalendarUserAddressSet *addressSetXML  `xml:"urn:ietf:params:xml:ns:caldav calendar-user-address-set"`
	CalendarHomeSet        *hrefContainerXML `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set"`

	CalendarColor *calendarColorXML `xml:"http://apple.com/ns/ical/ calendar-color"`

	CurrentUserPrivilegeSet *privilegeSetXML `xml:"DAV: current-user-privilege-set"`
	SupportedCalendarComponentSet *compSetXML `xml:"urn:ietf:params:xml:ns:caldav supported-calendar-component-set"`

	GetETag string `xml:"DAV: getetag"`

	CalendarData string `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
}

type resourceTypeXML struct {
	Calendar *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar"`
}

type hrefContainerXML struct {
	Href string `xml:"DAV: href"`
}

type addressSetXML struct {
	Hrefs []addressHrefXML `xml:"DAV: href"`
}

type addressHrefXML struct {
	Preferred string `xml:"preferred,attr"`
	Value     string `xml:",chardata"`
}

type calendarColorXML struct {
	Value string `xml:",chardata"`
}

type privilegeSetXML struct {
	Privileges []privilegeXML `xml:"DAV: privilege"`
}

type privilegeXML struct {
	All                          *struct{} `xml:"DAV: all"`
	Read                         *struct{} `xml:"DAV: read"`
	Write                        *struct{} `xml:"DAV: write"`
	WriteProperties              *struct{} `xml:"DAV: write-properties"`
	Unlock                       *struct{} `xml:"DAV: unlock"`
	ReadACL                      *struct{} `xml:"DAV: read-acl"`
	ReadCurrentUserPrivilegeSet  *struct{} `xml:"DAV: read-current-user-privilege-set"`
	WriteACL                     *struct{} `xml:"DAV: write-acl"`
	Bind                         *struct{} `xml:"DAV: bind"`
	Unbind                       *struct{} `xml:"DAV: unbind"`
}

type compSetXML struct {
	Comps []compXML `xml:"urn:ietf:params:xml:ns:caldav comp"`
}

type compXML struct {
	Name string `xml:"name,attr"`
}
